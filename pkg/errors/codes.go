package errors

// Application error codes for consistent error reporting
const (
	// General errors (1000-1999)
	CodeInternalError = "ERR_1000"
	CodeUnknownError  = "ERR_1001"
	CodeTimeout       = "ERR_1004"
	CodeRateLimit     = "ERR_1005"

	// Resource errors (3000-3099)
	CodeNotFound      = "ERR_3000"
	CodeAlreadyExists = "ERR_3001"
	CodeConflict      = "ERR_3002"

	// Validation errors (4000-4099)
	CodeValidationFailed = "ERR_4000"
	CodeInvalidFormat    = "ERR_4001"
	CodeMissingField     = "ERR_4002"
	CodeInvalidValue     = "ERR_4003"
	CodeOutOfRange       = "ERR_4004"

	// Allocation errors (5400-5499)
	CodeSuggestionResolved = "ERR_5400"
	CodeNegativeValue      = "ERR_5401"
	CodePercentageRange    = "ERR_5402"

	// External service errors (6000-6099)
	CodeExternalService   = "ERR_6000"
	CodePortfolioProvider = "ERR_6001"
	CodeTradeExecution    = "ERR_6002"
	CodeCircuitOpen       = "ERR_6003"
)
