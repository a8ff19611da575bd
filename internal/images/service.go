// Package images hosts commerce product images: uploads go to S3, size
// variants are generated locally, and public URLs are served through the
// CDN domain.
package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decode support

	"github.com/ignite/agency-portal/internal/config"
	"github.com/ignite/agency-portal/internal/pkg/logger"
)

// Size variant widths and encoding quality.
const (
	LargeWidth     = 1200
	MediumWidth    = 600
	ThumbnailWidth = 150
	JPEGQuality    = 85
	MaxFileSizeMB  = 10
)

// SupportedImageTypes is the upload content-type allowlist.
var SupportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// HostedImage is an uploaded product image with its CDN URLs.
type HostedImage struct {
	ID               string    `json:"id"`
	OrgID            string    `json:"org_id"`
	OriginalFilename string    `json:"original_filename"`
	ContentType      string    `json:"content_type"`
	Size             int64     `json:"size"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	CDNURL           string    `json:"cdn_url"`
	CDNURLThumbnail  string    `json:"cdn_url_thumbnail"`
	CDNURLMedium     string    `json:"cdn_url_medium"`
	CDNURLLarge      string    `json:"cdn_url_large"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// ObjectPutter is the slice of the S3 client the service needs; stubbed in
// tests.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Service uploads and hosts product images.
type Service struct {
	s3Client  ObjectPutter
	bucket    string
	cdnDomain string
}

// NewService builds a Service with a real S3 client from the environment's
// AWS credentials.
func NewService(ctx context.Context, cfg config.ImagesConfig) (*Service, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Service{
		s3Client:  s3.NewFromConfig(awsCfg),
		bucket:    cfg.BucketName,
		cdnDomain: cfg.CDNDomain,
	}, nil
}

// NewServiceWithClient wires an explicit S3 client (tests).
func NewServiceWithClient(client ObjectPutter, bucket, cdnDomain string) *Service {
	return &Service{s3Client: client, bucket: bucket, cdnDomain: cdnDomain}
}

// Upload stores the original and its size variants, returning the hosted
// record. The reader is capped at MaxFileSizeMB.
func (s *Service) Upload(ctx context.Context, orgID, filename, contentType string, r io.Reader) (*HostedImage, error) {
	if !SupportedImageTypes[contentType] {
		return nil, fmt.Errorf("unsupported image type: %s", contentType)
	}

	maxBytes := int64(MaxFileSizeMB) * 1024 * 1024
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image exceeds %dMB limit", MaxFileSizeMB)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	bounds := img.Bounds()

	id := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = "." + format
	}
	baseKey := fmt.Sprintf("images/%s/%s", orgID, id)

	originalKey := baseKey + ext
	if err := s.putObject(ctx, originalKey, contentType, data); err != nil {
		return nil, err
	}

	hosted := &HostedImage{
		ID:               id,
		OrgID:            orgID,
		OriginalFilename: filename,
		ContentType:      contentType,
		Size:             int64(len(data)),
		Width:            bounds.Dx(),
		Height:           bounds.Dy(),
		CDNURL:           s.cdnURL(originalKey),
		UploadedAt:       time.Now().UTC(),
	}

	// Variants are encoded as JPEG regardless of source format. Animated
	// GIFs keep only their first frame in variants; the original is intact.
	variants := []struct {
		suffix string
		width  int
		urlDst *string
	}{
		{"_large.jpg", LargeWidth, &hosted.CDNURLLarge},
		{"_medium.jpg", MediumWidth, &hosted.CDNURLMedium},
		{"_thumb.jpg", ThumbnailWidth, &hosted.CDNURLThumbnail},
	}
	for _, v := range variants {
		resized := resizeToWidth(img, v.width)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode %s variant: %w", v.suffix, err)
		}
		key := baseKey + v.suffix
		if err := s.putObject(ctx, key, "image/jpeg", buf.Bytes()); err != nil {
			return nil, err
		}
		*v.urlDst = s.cdnURL(key)
	}

	logger.Info("image uploaded",
		"org_id", orgID, "image_id", id,
		"size", fmt.Sprintf("%d", hosted.Size),
		"dimensions", fmt.Sprintf("%dx%d", hosted.Width, hosted.Height))
	return hosted, nil
}

func (s *Service) putObject(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=86400"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *Service) cdnURL(key string) string {
	if s.cdnDomain == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
	}
	return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
}

// resizeToWidth scales the image to the target width preserving aspect
// ratio. Images already narrower are returned at original size.
func resizeToWidth(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= width {
		return img
	}
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
