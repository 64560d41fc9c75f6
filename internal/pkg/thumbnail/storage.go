package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
)

// Thumbnails are normalized to a 16:9 card size before upload.
const (
	maxThumbnailWidth  = 640
	maxThumbnailHeight = 360
	jpegQuality        = 85
)

// Storage wraps the S3 client with thumbnail-specific functionality
type Storage struct {
	s3Client *s3.Client
	config   *Config
}

// NewStorage creates a new S3 thumbnail storage client
func NewStorage(cfg *Config) (*Storage, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("thumbnail storage is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services need path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	return &Storage{
		s3Client: s3Client,
		config:   cfg,
	}, nil
}

// ProcessAndUpload resizes the raw image, encodes it as JPEG and uploads it
// to the bucket. It returns the public URL of the stored thumbnail.
func (s *Storage) ProcessAndUpload(ctx context.Context, raw []byte, automationUUID string) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode thumbnail image: %w", err)
	}

	resized := imaging.Fit(img, maxThumbnailWidth, maxThumbnailHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	key := s.config.GetObjectKey(automationUUID)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload thumbnail: %w", err)
	}

	return s.PublicURL(key), nil
}

// PublicURL builds the public URL for an object key.
func (s *Storage) PublicURL(key string) string {
	if s.config.EndpointURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.config.EndpointURL, "/"), s.config.BucketName, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.BucketName, s.config.Region, key)
}
