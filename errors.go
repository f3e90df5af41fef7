package softphone

import "errors"

// Sign-in errors.
var (
	// ErrInvalidCredentials indicates a sign-in with a missing username or
	// password, or a server address that is not a dotted-quad IPv4 address.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Configuration errors.
var (
	// ErrInvalidOptions indicates options that fail validation.
	ErrInvalidOptions = errors.New("invalid options")

	// ErrUnsupportedConfigFormat indicates a config file whose extension is
	// not .yaml, .yml or .toml.
	ErrUnsupportedConfigFormat = errors.New("unsupported config file format")
)
