package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidType          ErrorCode = 102
	ErrCodeInvalidPeriod        ErrorCode = 103
	ErrCodeInvalidMultiplier    ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105
	ErrCodeInvalidTimezone      ErrorCode = 106
	ErrCodeInvalidSymbol        ErrorCode = 107
	ErrCodeInvalidVersion       ErrorCode = 108

	// Feed/provider errors (200-299)
	ErrCodeProviderUnavailable  ErrorCode = 200
	ErrCodeHistoricalDataFailed ErrorCode = 201
	ErrCodeStreamFailed         ErrorCode = 202
	ErrCodeBarParseFailed       ErrorCode = 203
	ErrCodeTickParseFailed      ErrorCode = 204
	ErrCodeInvalidProvider      ErrorCode = 205

	// Sink errors (300-399)
	ErrCodeSinkUnavailable   ErrorCode = 300
	ErrCodeSinkWriteFailed   ErrorCode = 301
	ErrCodeSinkPublishFailed ErrorCode = 302

	// Indicator errors (400-499)
	ErrCodeIndicatorOutOfOrder ErrorCode = 400

	// Aggregation errors (500-599)
	ErrCodeBucketOutOfOrder ErrorCode = 500

	// Engine/session errors (600-699)
	ErrCodeEngineInitFailed   ErrorCode = 600
	ErrCodeEngineNotReady     ErrorCode = 601
	ErrCodeSymbolUnknown      ErrorCode = 602
	ErrCodeLateHistoricalBar  ErrorCode = 603
	ErrCodeSessionDateRolled  ErrorCode = 604
	ErrCodeArchiveWriteFailed ErrorCode = 605

	// Callback errors (800-899)
	ErrCodeCallbackFailed ErrorCode = 800
)
