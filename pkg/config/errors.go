package config

import (
	"errors"
	"fmt"
)

const (
	// APIURLEnv overrides the GraphQL endpoint
	APIURLEnv = "OTA_API_URL"
	// AssetsBucketEnv supplies the asset bucket when the config file does not
	AssetsBucketEnv = "OTA_ASSETS_BUCKET"
)

// ConfigError reports a missing or malformed local configuration file.
type ConfigError struct {
	// Path is the file (or directory) that was inspected
	Path string
	// Message is the user-facing description
	Message string
	// Err is the underlying cause, if any
	Err error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
