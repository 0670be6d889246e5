package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

var ErrNotConfigured = errors.New("Cloudinary credentials are not configured")

// Object is a stored image. ID is the store's handle for deleting it.
type Object struct {
	URL string
	ID  string
}

// ObjectStore persists encoded images.
type ObjectStore interface {
	Put(ctx context.Context, folder string, data []byte) (Object, error)
	Delete(ctx context.Context, id string) error
}

type CloudinaryStore struct {
	cld  *cloudinary.Cloudinary
	root string
}

// NewCloudinaryStore returns nil, nil when credentials are missing.
func NewCloudinaryStore(cloudName, apiKey, apiSecret, root string) (*CloudinaryStore, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, nil
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryStore{cld: cld, root: root}, nil
}

func (s *CloudinaryStore) Put(ctx context.Context, folder string, data []byte) (Object, error) {
	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:         path.Join(s.root, folder),
		PublicID:       uuid.NewString(),
		ResourceType:   "image",
		Overwrite:      api.Bool(false),
		UniqueFilename: api.Bool(false),
	})
	if err != nil {
		return Object{}, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return Object{}, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return Object{URL: res.SecureURL, ID: res.PublicID}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, id string) error {
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     id,
		ResourceType: "image",
		Invalidate:   api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy: %s", res.Error.Message)
	}
	return nil
}
