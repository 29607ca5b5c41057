package s3backup

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/artimagehub/ArtImageHub/internal/pkg/env"
)

// Config holds the Cloudflare R2 backup configuration. R2 speaks the S3
// wire protocol, so the values map straight onto the AWS SDK.
type Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Enabled         bool
}

// LoadConfig loads R2 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccountID:       env.GetEnv("R2_ACCOUNT_ID", ""),
		AccessKeyID:     env.GetEnv("R2_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("R2_SECRET_ACCESS_KEY", ""),
		BucketName:      env.GetEnv("R2_BUCKET_NAME", ""),
		Enabled:         env.GetEnv("R2_BACKUP_ENABLED", "false") == "true",
	}

	// Validate required fields if backup is enabled
	if config.Enabled {
		if config.AccountID == "" {
			return nil, errors.New("R2_ACCOUNT_ID is required when R2 backup is enabled")
		}
		if config.AccessKeyID == "" {
			return nil, errors.New("R2_ACCESS_KEY_ID is required when R2 backup is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("R2_SECRET_ACCESS_KEY is required when R2 backup is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("R2_BUCKET_NAME is required when R2 backup is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if R2 backup is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// EndpointURL returns the account-scoped R2 endpoint
func (c *Config) EndpointURL() string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// GetObjectKey generates a standardized object key for a restored result.
// Format: results/YYYY/MM/UUID.ext
func (c *Config) GetObjectKey(taskUUID, resultPath string, year, month int) string {
	return fmt.Sprintf("results/%04d/%02d/%s%s", year, month, taskUUID, filepath.Ext(resultPath))
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}

// GetBucketName returns the bucket name as configured
func (c *Config) GetBucketName() string {
	return c.BucketName
}
