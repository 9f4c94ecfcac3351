package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidState       = errors.New("operation not allowed in current state")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Market Data Errors
	ErrPriceUnavailable = errors.New("price unavailable from all providers")
	ErrProviderFailed   = errors.New("quote provider request failed")
	ErrInvalidResponse  = errors.New("unexpected response shape from provider")
	ErrRateLimited      = errors.New("API rate limit exceeded")
	ErrCircuitOpen      = errors.New("provider circuit breaker is open")
	ErrConnectionFailed = errors.New("failed to connect to remote service")
	ErrRiskUnavailable  = errors.New("risk score unavailable")
	ErrHoldersUnknown   = errors.New("holder count unavailable")
	ErrFeedUnavailable  = errors.New("token discovery feed unavailable")

	// Trading Errors
	ErrSwapFailed        = errors.New("swap execution failed")
	ErrInsufficientFunds = errors.New("insufficient funds for operation")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)
