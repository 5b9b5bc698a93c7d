package database

import (
	"github.com/flarco/g"
)

// UnsupportedFormatError is returned when a COPY is requested for a
// data format other than csv
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return g.F("invalid data type specified: %q (only csv is supported)", e.Format)
}

// MissingConfigurationError is returned when a setting needed for
// staging is not configured
type MissingConfigurationError struct {
	Setting string
}

func (e *MissingConfigurationError) Error() string {
	return g.F("missing %s, needed for transferring data to Redshift. Must be specified as env var or property", e.Setting)
}

// CredentialsUnavailableError is returned when no source can supply
// AWS credentials
type CredentialsUnavailableError struct{}

func (e *CredentialsUnavailableError) Error() string {
	return "no AWS credentials available: provide access keys, an IAM role, AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY or an AWS session"
}
