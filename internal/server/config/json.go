package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/flagx"
	"github.com/dmitrijs2005/mediavault/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// Pointer fields distinguish "absent" from zero values, so a partial file only
// overrides what it names.
type JsonConfig struct {
	HTTPAddr                    string          `json:"http_addr"`
	DatabaseDSN                 string          `json:"database_dsn"`
	SecretKey                   string          `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	LogFormat                   string          `json:"log_format"`

	StorageBackend    string `json:"storage_backend"`
	LocalRoot         string `json:"local_root"`
	LocalPublicPrefix string `json:"local_public_prefix"`

	S3RootUser     string          `json:"s3_root_user"`
	S3RootPassword string          `json:"s3_root_password"`
	S3Bucket       string          `json:"s3_bucket"`
	S3Region       string          `json:"s3_region"`
	S3BaseEndpoint string          `json:"s3_base_endpoint"`
	S3PublicRead   *bool           `json:"s3_public_read"`
	PresignTTL     *timex.Duration `json:"presign_ttl"`

	MaxUploadBytes       *int64 `json:"max_upload_bytes"`
	MaxAvatarUploadBytes *int64 `json:"max_avatar_upload_bytes"`

	OptimizerMaxWidth     *int   `json:"optimizer_max_width"`
	OptimizerMaxHeight    *int   `json:"optimizer_max_height"`
	OptimizerQuality      *int   `json:"optimizer_quality"`
	OptimizerMaxSizeBytes *int64 `json:"optimizer_max_size_bytes"`

	MigrationWorkers    *int   `json:"migration_workers"`
	MigrationRetries    *int   `json:"migration_retries"`
	MigrationThroughput *int64 `json:"migration_throughput"`

	WatermarkImages *bool `json:"watermark_images"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags. If neither
// is set, no JSON file is loaded. If the file cannot be read or contains
// invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setString(&config.LogFormat, c.LogFormat)

	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.LocalRoot, c.LocalRoot)
	setString(&config.LocalPublicPrefix, c.LocalPublicPrefix)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setValue(&config.S3PublicRead, c.S3PublicRead)
	setValue(&config.WatermarkImages, c.WatermarkImages)
	setDuration(&config.PresignTTL, c.PresignTTL)

	setValue(&config.MaxUploadBytes, c.MaxUploadBytes)
	setValue(&config.MaxAvatarUploadBytes, c.MaxAvatarUploadBytes)

	setValue(&config.OptimizerMaxWidth, c.OptimizerMaxWidth)
	setValue(&config.OptimizerMaxHeight, c.OptimizerMaxHeight)
	setValue(&config.OptimizerQuality, c.OptimizerQuality)
	setValue(&config.OptimizerMaxSizeBytes, c.OptimizerMaxSizeBytes)

	setValue(&config.MigrationWorkers, c.MigrationWorkers)
	setValue(&config.MigrationRetries, c.MigrationRetries)
	setValue(&config.MigrationThroughput, c.MigrationThroughput)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setValue[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
