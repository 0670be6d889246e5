package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/httpx"
)

const maxFiles = 10

type Handler struct {
	store ObjectStore
	log   *slog.Logger
}

// NewHandler accepts a nil store; uploads then fail with a configuration error.
func NewHandler(store ObjectStore, log *slog.Logger) *Handler {
	return &Handler{store: store, log: log}
}

// process compresses one uploaded file and stores it under folder.
func (h *Handler) process(c *gin.Context, fh *multipart.FileHeader, folder string) (Object, error) {
	if fh.Size > MaxFileSize {
		return Object{}, fmt.Errorf("%s: %w", fh.Filename, errTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return Object{}, err
	}
	defer f.Close()

	data, err := Compress(f)
	if err != nil {
		return Object{}, fmt.Errorf("%s: %w", fh.Filename, err)
	}
	return h.store.Put(c.Request.Context(), folder, data)
}

// discard removes objects stored earlier in a batch that failed part way.
func (h *Handler) discard(ctx context.Context, objs []Object) {
	ctx = context.WithoutCancel(ctx)
	for _, o := range objs {
		if err := h.store.Delete(ctx, o.ID); err != nil {
			h.log.Warn("orphaned upload not removed", "id", o.ID, "err", err)
		}
	}
}

var errTooLarge = errors.New("file exceeds the 5 MB limit")

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errTooLarge), errors.Is(err, ErrNotImage):
		httpx.Fail(c, http.StatusBadRequest, err.Error(), nil)
	default:
		h.log.Error("image upload failed", "err", err)
		httpx.Fail(c, http.StatusInternalServerError, "Image upload failed", nil)
	}
}

func (h *Handler) configured(c *gin.Context) bool {
	if h.store == nil {
		httpx.Fail(c, http.StatusInternalServerError, ErrNotConfigured.Error(), nil)
		return false
	}
	return true
}

func (h *Handler) single(folder string) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("image")
		if err != nil {
			httpx.Fail(c, http.StatusBadRequest, "No file uploaded", nil)
			return
		}
		if !h.configured(c) {
			return
		}
		obj, err := h.process(c, fh, folder)
		if err != nil {
			h.fail(c, err)
			return
		}
		httpx.OK(c, "Image uploaded successfully", gin.H{"url": obj.URL})
	}
}

func (h *Handler) Images(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["images"]) == 0 {
		httpx.Fail(c, http.StatusBadRequest, "No files uploaded", nil)
		return
	}
	files := form.File["images"]
	if len(files) > maxFiles {
		httpx.Fail(c, http.StatusBadRequest, fmt.Sprintf("At most %d images can be uploaded at once", maxFiles), nil)
		return
	}
	if !h.configured(c) {
		return
	}
	stored := make([]Object, 0, len(files))
	for _, fh := range files {
		obj, err := h.process(c, fh, "products")
		if err != nil {
			h.discard(c.Request.Context(), stored)
			h.fail(c, err)
			return
		}
		stored = append(stored, obj)
	}
	urls := make([]string, len(stored))
	for i, o := range stored {
		urls[i] = o.URL
	}
	httpx.OK(c, "Images uploaded successfully", gin.H{"urls": urls})
}

func (h *Handler) Routes(api *gin.RouterGroup, admin ...gin.HandlerFunc) {
	g := api.Group("/upload", admin...)
	g.POST("/image", h.single("products"))
	g.POST("/images", h.Images)
	g.POST("/category-image", h.single("categories"))
}
