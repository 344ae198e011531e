package config

import "errors"

// Configuration errors. They are fatal and are raised before any remote call.
//
//	if config.IsConfigurationError(err) {
//	    // bad flags, environment or input files
//	}
var (
	// ErrMissingToken is returned when no API token was given by flag,
	// environment or config file.
	ErrMissingToken = errors.New("token not found (use --token or set NOTION_TOKEN)")

	// ErrUnsupportedFormat is returned when an input or mapping file has an
	// extension this tool does not read.
	ErrUnsupportedFormat = errors.New("unsupported file extension")

	// ErrMissingDatabase is returned when a command needs a database id and
	// none was given.
	ErrMissingDatabase = errors.New("database id is required (use --database_id)")
)

// IsConfigurationError returns true if err stems from invalid flags,
// environment or input files rather than from a remote call.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrMissingDatabase)
}
