package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/config"
	"storefront/internal/domain/user"
	"storefront/internal/httpx"
	"storefront/internal/mail"
	"storefront/internal/util"
)

const (
	OTPPurposeVerifyEmail   = "verify_email"
	OTPPurposeResetPassword = "reset_password"
)

type UserStore interface {
	UserLookup
	Create(ctx context.Context, in NewUser) (user.User, error)
	ByEmail(ctx context.Context, email string) (user.User, error)
	UpdatePassword(ctx context.Context, userID int64, newHash string) error
	UpdateProfile(ctx context.Context, userID int64, in ProfileUpdate) (user.User, error)
	SetEmailVerified(ctx context.Context, userID int64) error
	TouchLogin(ctx context.Context, userID int64) error
}

type RefreshStore interface {
	Save(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	Rotate(ctx context.Context, userID int64, oldHash, newHash string, expiresAt time.Time) (bool, error)
	Revoke(ctx context.Context, userID int64, tokenHash string) error
	RevokeAll(ctx context.Context, userID int64) error
}

type OTPStore interface {
	Issue(ctx context.Context, userID int64, purpose, codeHash string, expiresAt time.Time) error
	Consume(ctx context.Context, userID int64, purpose, codeHash string) (bool, error)
}

type Dependencies struct {
	Cfg      config.Config
	JWT      *JWTManager
	Users    UserStore
	Refresh  RefreshStore
	OTP      OTPStore
	Mailer   mail.Mailer
	Composer mail.Composer
	Log      *slog.Logger
}

type Handler struct {
	deps Dependencies
}

func NewHandler(d Dependencies) *Handler {
	return &Handler{deps: d}
}

type registerReq struct {
	FirstName string `json:"firstName" binding:"required,min=2,max=50"`
	LastName  string `json:"lastName" binding:"required,min=1,max=50"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	Phone     string `json:"phone" binding:"omitempty,in_phone"`
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type verifyOTPReq struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

type emailReq struct {
	Email string `json:"email" binding:"required,email"`
}

type resetWithOTPReq struct {
	Email       string `json:"email" binding:"required,email"`
	OTP         string `json:"otp" binding:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=72"`
}

type profileReq struct {
	FirstName *string `json:"firstName" binding:"omitempty,min=2,max=50"`
	LastName  *string `json:"lastName" binding:"omitempty,min=1,max=50"`
	Phone     *string `json:"phone" binding:"omitempty,in_phone"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72"`
}

type authResponse struct {
	TokenPair
	User user.User `json:"user"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	verify := h.deps.Cfg.RequireEmailVerification

	pwHash, err := HashPassword(req.Password)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	u, err := h.deps.Users.Create(ctx, NewUser{
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Email:         util.NormalizeEmail(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		PasswordHash:  pwHash,
		Role:          user.RoleCustomer,
		EmailVerified: !verify,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}

	if verify {
		h.sendOTP(ctx, u, OTPPurposeVerifyEmail, "Verify your email")
		httpx.Created(c, "Account created. OTP sent to your email for verification.", gin.H{"user": u})
		return
	}

	pair, err := h.issueTokens(ctx, u)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	mail.SendBestEffort(ctx, h.deps.Log, h.deps.Mailer, h.deps.Composer.Welcome(u.Email, u.FirstName))
	httpx.Created(c, "User registered successfully", authResponse{TokenPair: pair, User: u})
}

func (h *Handler) ResendVerifyOTP(c *gin.Context) {
	var req emailReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	// privacy: the response never says whether the account exists
	u, err := h.deps.Users.ByEmail(ctx, util.NormalizeEmail(req.Email))
	if err == nil && u.IsActive && !u.EmailVerified {
		h.sendOTP(ctx, u, OTPPurposeVerifyEmail, "Verify your email")
	}
	httpx.OK(c, "If the account exists and is unverified, a new OTP has been sent.", nil)
}

func (h *Handler) VerifyEmailOTP(c *gin.Context) {
	var req verifyOTPReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	u, err := h.deps.Users.ByEmail(ctx, util.NormalizeEmail(req.Email))
	if err != nil || !u.IsActive {
		httpx.Error(c, apperr.Invalid("Invalid or expired OTP"))
		return
	}
	if u.EmailVerified {
		httpx.OK(c, "Email already verified", nil)
		return
	}

	if err := h.consumeOTP(ctx, u.ID, OTPPurposeVerifyEmail, req.OTP); err != nil {
		httpx.Error(c, err)
		return
	}
	if err := h.deps.Users.SetEmailVerified(ctx, u.ID); err != nil {
		httpx.Error(c, err)
		return
	}

	mail.SendBestEffort(ctx, h.deps.Log, h.deps.Mailer, h.deps.Composer.Welcome(u.Email, u.FirstName))
	httpx.OK(c, "Email verified successfully. Now you can login.", nil)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	u, err := h.deps.Users.ByEmail(ctx, util.NormalizeEmail(req.Email))
	if err != nil || !u.IsActive || !CheckPassword(u.PasswordHash, req.Password) {
		httpx.Error(c, apperr.Unauthorized("Invalid email or password"))
		return
	}
	if h.deps.Cfg.RequireEmailVerification && !u.EmailVerified {
		httpx.Error(c, apperr.Forbidden("Email not verified"))
		return
	}

	pair, err := h.issueTokens(ctx, u)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if err := h.deps.Users.TouchLogin(ctx, u.ID); err != nil {
		h.deps.Log.Warn("update last login failed", "user_id", u.ID, "error", err)
	}
	httpx.OK(c, "Login successful", authResponse{TokenPair: pair, User: u})
}

// RefreshToken rotates the refresh token: the presented one is revoked and a
// new pair is issued.
func (h *Handler) RefreshToken(c *gin.Context) {
	var req refreshReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	claims, err := h.deps.JWT.ParseRefresh(req.RefreshToken)
	if err != nil {
		httpx.Error(c, apperr.Unauthorized("Invalid refresh token"))
		return
	}
	u, err := h.deps.Users.ByID(ctx, claims.UserID)
	if err != nil || !u.IsActive {
		httpx.Error(c, apperr.Unauthorized("User not found or inactive"))
		return
	}

	pair, err := h.deps.JWT.SignPair(u.ID, u.Role)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	rotated, err := h.deps.Refresh.Rotate(ctx, u.ID, HashToken(req.RefreshToken), HashToken(pair.RefreshToken), pair.RefreshExpiresAt)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if !rotated {
		httpx.Error(c, apperr.Unauthorized("Refresh token expired or revoked"))
		return
	}
	httpx.OK(c, "Token refreshed", pair)
}

func (h *Handler) Logout(c *gin.Context) {
	var req refreshReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	if claims, err := h.deps.JWT.ParseRefresh(req.RefreshToken); err == nil {
		if claims.UserID != UserID(c) {
			httpx.Error(c, apperr.Forbidden("Refresh token belongs to another account"))
			return
		}
		_ = h.deps.Refresh.Revoke(c.Request.Context(), claims.UserID, HashToken(req.RefreshToken))
	}
	httpx.OK(c, "Logged out successfully", nil)
}

// ForgotPassword emails a reset OTP. It answers the same way whether or not
// the account exists.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req emailReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	u, err := h.deps.Users.ByEmail(ctx, util.NormalizeEmail(req.Email))
	if err == nil && u.IsActive {
		h.sendOTP(ctx, u, OTPPurposeResetPassword, "Reset password OTP")
	}
	httpx.OK(c, "If the account exists, a password reset OTP has been sent.", nil)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetWithOTPReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	u, err := h.deps.Users.ByEmail(ctx, util.NormalizeEmail(req.Email))
	if err != nil || !u.IsActive {
		httpx.Error(c, apperr.Invalid("Invalid or expired OTP"))
		return
	}
	if err := h.consumeOTP(ctx, u.ID, OTPPurposeResetPassword, req.OTP); err != nil {
		httpx.Error(c, err)
		return
	}
	if err := h.setPassword(ctx, u.ID, req.NewPassword); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Password reset successfully", nil)
}

func (h *Handler) Profile(c *gin.Context) {
	u, err := h.deps.Users.ByID(c.Request.Context(), UserID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Profile retrieved successfully", u)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req profileReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := strings.TrimSpace(*s)
		return &v
	}
	u, err := h.deps.Users.UpdateProfile(c.Request.Context(), UserID(c), ProfileUpdate{
		FirstName: trim(req.FirstName),
		LastName:  trim(req.LastName),
		Phone:     trim(req.Phone),
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Profile updated successfully", u)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	u, err := h.deps.Users.ByID(ctx, UserID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if !CheckPassword(u.PasswordHash, req.CurrentPassword) {
		httpx.Error(c, apperr.Unauthorized("Current password is incorrect"))
		return
	}
	if err := h.setPassword(ctx, u.ID, req.NewPassword); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, "Password changed successfully", nil)
}

// setPassword stores the new hash and revokes every refresh token.
func (h *Handler) setPassword(ctx context.Context, userID int64, plain string) error {
	newHash, err := HashPassword(plain)
	if err != nil {
		return err
	}
	if err := h.deps.Users.UpdatePassword(ctx, userID, newHash); err != nil {
		return err
	}
	return h.deps.Refresh.RevokeAll(ctx, userID)
}

func (h *Handler) issueTokens(ctx context.Context, u user.User) (TokenPair, error) {
	pair, err := h.deps.JWT.SignPair(u.ID, u.Role)
	if err != nil {
		return TokenPair{}, err
	}
	if err := h.deps.Refresh.Save(ctx, u.ID, HashToken(pair.RefreshToken), pair.RefreshExpiresAt); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// sendOTP issues and mails a code. Failures are logged: the caller's
// response must not reveal them.
func (h *Handler) sendOTP(ctx context.Context, u user.User, purpose, subject string) {
	otp, err := util.NewOTP()
	if err != nil {
		h.deps.Log.Error("generate otp failed", "error", err)
		return
	}
	ttl := h.deps.Cfg.OTPTTLMin
	if ttl <= 0 {
		ttl = 10
	}
	expiresAt := time.Now().Add(time.Duration(ttl) * time.Minute)

	if err := h.deps.OTP.Issue(ctx, u.ID, purpose, HashToken(otp), expiresAt); err != nil {
		h.deps.Log.Error("store otp failed", "user_id", u.ID, "purpose", purpose, "error", err)
		return
	}
	mail.SendBestEffort(ctx, h.deps.Log, h.deps.Mailer, h.deps.Composer.OTP(u.Email, subject, otp, expiresAt))
}

// consumeOTP spends a matching code; it cannot be replayed afterwards.
func (h *Handler) consumeOTP(ctx context.Context, userID int64, purpose, otp string) error {
	ok, err := h.deps.OTP.Consume(ctx, userID, purpose, HashToken(otp))
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Invalid("Invalid or expired OTP")
	}
	return nil
}

// Routes registers the auth endpoints on api. authed is the middleware
// chain for signed-in users.
func (h *Handler) Routes(api *gin.RouterGroup, authed gin.HandlerFunc) {
	g := api.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/verify-email", h.VerifyEmailOTP)
	g.POST("/resend-verify", h.ResendVerifyOTP)
	g.POST("/login", h.Login)
	g.POST("/refresh-token", h.RefreshToken)
	g.POST("/forgot-password", h.ForgotPassword)
	g.POST("/reset-password", h.ResetPassword)

	g.GET("/profile", authed, h.Profile)
	g.PUT("/profile", authed, h.UpdateProfile)
	g.POST("/change-password", authed, h.ChangePassword)
	g.POST("/logout", authed, h.Logout)
}
