package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	indianPhone = regexp.MustCompile(`^[6-9]\d{9}$`)
	pincode     = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	httpURL     = regexp.MustCompile(`^https?://.+`)

	registerOnce sync.Once
)

// FieldError is one entry of the "errors" array in a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RegisterValidators installs the custom tags and makes validator report
// json field names. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
		_ = v.RegisterValidation("in_phone", func(fl validator.FieldLevel) bool {
			return indianPhone.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		_ = v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
			return pincode.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		_ = v.RegisterValidation("http_url", func(fl validator.FieldLevel) bool {
			return httpURL.MatchString(fl.Field().String())
		})
	})
}

// BindJSON decodes and validates the body. On failure it writes the 400
// envelope and returns false.
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		validationFailed(c, err)
		return false
	}
	return true
}

// BindQuery is BindJSON for query strings.
func BindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		validationFailed(c, err)
		return false
	}
	return true
}

func validationFailed(c *gin.Context, err error) {
	Fail(c, http.StatusBadRequest, "Validation failed", FieldErrors(err))
}

// FieldErrors converts binding errors into field-level messages.
func FieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fieldPath(fe), Message: describe(fe)})
		}
		return out
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []FieldError{{Field: typeErr.Field, Message: "must be of type " + typeErr.Type.String()}}
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return []FieldError{{Field: "", Message: "invalid number " + strconv.Quote(numErr.Num)}}
	}
	if errors.Is(err, io.EOF) {
		return []FieldError{{Field: "", Message: "request body is required"}}
	}
	return []FieldError{{Field: "", Message: "malformed request: " + err.Error()}}
}

// fieldPath drops the root struct and any embedded struct names, which keep
// their Go spelling, from the namespace.
func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) < 2 {
		return fe.Field()
	}
	out := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		if p != "" && p[0] >= 'A' && p[0] <= 'Z' {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return fe.Field()
	}
	return strings.Join(out, ".")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "in_phone":
		return "must be a valid Indian phone number"
	case "pincode":
		return "must be a valid Indian pincode"
	case "http_url", "url":
		return "must be a valid URL"
	case "datetime":
		return "must be a date in " + fe.Param() + " format"
	default:
		return "failed on " + fe.Tag()
	}
}
