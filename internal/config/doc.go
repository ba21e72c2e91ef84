// Package config loads runtime settings for the pinvault shell.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. An optional JSON file named by -c or -config.
//  3. Command-line flags.
//
// Flags
//
//	-d string   data directory (keystore and file-backed snapshots)
//	-b string   snapshot backend: "file" or "s3"
//	-l string   log level: debug, info, warn, error
//	-t int      idle auto-lock timeout in seconds, 0 disables
//
// # JSON schema
//
// Durations use timex.Duration, so "5m" and integer nanoseconds both work:
//
//	{
//	  "data_dir": "~/.pinvault",
//	  "store_backend": "s3",
//	  "s3_bucket": "my-vault",
//	  "s3_region": "eu-north-1",
//	  "s3_base_endpoint": "http://127.0.0.1:9000",
//	  "s3_access_key": "minio",
//	  "s3_secret_key": "minio123",
//	  "snapshot_name": "vault.db",
//	  "log_level": "info",
//	  "unlock_timeout": "5m"
//	}
//
// When s3_access_key is empty the AWS default credential chain is used.
package config
