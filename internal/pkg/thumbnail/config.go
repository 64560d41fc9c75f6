package thumbnail

import (
	"errors"

	"github.com/flowmarkt/flowmarkt/internal/pkg/env"
)

// Config holds S3 thumbnail storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "eu-central-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("S3_THUMBNAILS_ENABLED", "false") == "true",
	}

	// Validate required fields if thumbnail storage is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when thumbnail storage is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when thumbnail storage is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when thumbnail storage is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if thumbnail storage is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey generates a standardized S3 object key for an automation thumbnail
func (c *Config) GetObjectKey(automationUUID string) string {
	// Format: thumbnails/UUID.jpg
	return "thumbnails/" + automationUUID + ".jpg"
}
