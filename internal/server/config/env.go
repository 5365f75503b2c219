package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the server reads, e.g.
// MEDIAVAULT_S3_BUCKET.
const EnvPrefix = "MEDIAVAULT"

// parseEnv overlays values from MEDIAVAULT_* environment variables. Only
// variables that are present override the current value; a present but empty
// variable clears it.
func parseEnv(config *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	str("http_addr", &config.HTTPAddr)
	str("database_dsn", &config.DatabaseDSN)
	str("secret_key", &config.SecretKey)
	str("log_format", &config.LogFormat)
	str("storage_backend", &config.StorageBackend)
	str("local_root", &config.LocalRoot)
	str("local_public_prefix", &config.LocalPublicPrefix)
	str("s3_root_user", &config.S3RootUser)
	str("s3_root_password", &config.S3RootPassword)
	str("s3_bucket", &config.S3Bucket)
	str("s3_region", &config.S3Region)
	str("s3_base_endpoint", &config.S3BaseEndpoint)

	if v.IsSet("s3_public_read") {
		config.S3PublicRead = v.GetBool("s3_public_read")
	}
	if v.IsSet("watermark_images") {
		config.WatermarkImages = v.GetBool("watermark_images")
	}
	if v.IsSet("access_token_validity_duration") {
		config.AccessTokenValidityDuration = v.GetDuration("access_token_validity_duration")
	}
	if v.IsSet("presign_ttl") {
		config.PresignTTL = v.GetDuration("presign_ttl")
	}
	if v.IsSet("max_upload_bytes") {
		config.MaxUploadBytes = v.GetInt64("max_upload_bytes")
	}
	if v.IsSet("max_avatar_upload_bytes") {
		config.MaxAvatarUploadBytes = v.GetInt64("max_avatar_upload_bytes")
	}
	if v.IsSet("migration_workers") {
		config.MigrationWorkers = v.GetInt("migration_workers")
	}
	if v.IsSet("migration_retries") {
		config.MigrationRetries = v.GetInt("migration_retries")
	}
	if v.IsSet("migration_throughput") {
		config.MigrationThroughput = v.GetInt64("migration_throughput")
	}
}
