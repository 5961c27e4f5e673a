package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown  ErrorCode = 1
	ErrCodeInternal ErrorCode = 2

	// Validation and configuration errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidEventType     ErrorCode = 103
	ErrCodeInvalidPeriod        ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105
	ErrCodeConfigReadFailed     ErrorCode = 106
	ErrCodeVersionMismatch      ErrorCode = 107

	// Lexical errors (200-299)
	ErrCodeUnknownToken ErrorCode = 200
	ErrCodeLexFailed    ErrorCode = 201

	// Parse errors (300-399)
	ErrCodeSyntax           ErrorCode = 300
	ErrCodeUnexpectedToken  ErrorCode = 301
	ErrCodeValidationFailed ErrorCode = 302

	// Indicator and market data errors (400-499)
	ErrCodeIndicatorNotFound      ErrorCode = 400
	ErrCodeIndicatorAlreadyExists ErrorCode = 401
	ErrCodeIndicatorCalculation   ErrorCode = 402
	ErrCodeMarketDataFetchFailed  ErrorCode = 403
	ErrCodeNoMarketData           ErrorCode = 404
	ErrCodeNoNewCandle            ErrorCode = 405
	ErrCodeInvalidProvider        ErrorCode = 406
	ErrCodeInvalidInterval        ErrorCode = 407

	// Trading and exchange errors (500-599)
	ErrCodeOrderFailed       ErrorCode = 500
	ErrCodeRateLimited       ErrorCode = 501
	ErrCodeExchangeRejected  ErrorCode = 502
	ErrCodeExchangeNotReady  ErrorCode = 503
	ErrCodeQuantityTooSmall  ErrorCode = 504
	ErrCodeUnsupportedAction ErrorCode = 505

	// Journal errors (600-699)
	ErrCodeJournalOpenFailed  ErrorCode = 600
	ErrCodeJournalWriteFailed ErrorCode = 601
	ErrCodeJournalQueryFailed ErrorCode = 602

	// Server errors (700-799)
	ErrCodeBadRequest   ErrorCode = 700
	ErrCodeServerFailed ErrorCode = 701
)
