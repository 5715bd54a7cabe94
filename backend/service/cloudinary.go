package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/shhady/leadform/backend/config"
)

// cloudinaryAPI is the part of the Cloudinary upload API used here.
type cloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryService uploads through an upload preset and returns the
// secure_url of the asset.
type CloudinaryService struct {
	api    cloudinaryAPI
	config *config.CloudinaryConfig
}

func NewCloudinaryService(cfg *config.CloudinaryConfig) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	return &CloudinaryService{api: &cld.Upload, config: cfg}, nil
}

func (s *CloudinaryService) Upload(ctx context.Context, filename string, r io.Reader, size int64, _ string, progress ProgressFunc) (string, error) {
	params := uploader.UploadParams{
		UploadPreset:     s.config.UploadPreset,
		Folder:           s.config.Folder,
		FilenameOverride: filename,
	}

	resp, err := s.api.Upload(ctx, newProgressReader(r, size, progress), params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("%w: %s", ErrUploadFailed, resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", fmt.Errorf("%w: no secure_url in response", ErrUploadFailed)
	}
	return resp.SecureURL, nil
}

func (s *CloudinaryService) Delete(ctx context.Context, publicID string) error {
	if s.config.Folder != "" && !strings.HasPrefix(publicID, s.config.Folder+"/") {
		publicID = s.config.Folder + "/" + publicID
	}

	resp, err := s.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	if resp.Result != "ok" {
		return fmt.Errorf("%w: result %q", ErrDeleteFailed, resp.Result)
	}
	return nil
}
