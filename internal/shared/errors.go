package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrMisconfigured = fmt.Errorf("missing required configuration")

	// Authentication errors
	ErrMissingCode   = fmt.Errorf("missing authorization code")
	ErrStateMismatch = fmt.Errorf("oauth state mismatch")
	ErrTokenExchange = fmt.Errorf("token exchange failed")
	ErrUnauthorized  = fmt.Errorf("no valid session")

	// Upstream errors
	ErrUpstream           = fmt.Errorf("upstream request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
