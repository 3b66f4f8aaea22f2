package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Session ───────────────────────────────────────────────────────
	ErrLoadFailed         ErrCode = "LOAD_FAILED"
	ErrRegistrationFailed ErrCode = "REGISTRATION_FAILED"
	ErrSubmissionFailed   ErrCode = "SUBMISSION_FAILED"
	ErrInvalidState       ErrCode = "INVALID_STATE"
	ErrUnknownQuestion    ErrCode = "UNKNOWN_QUESTION"
	ErrProctorUnavailable ErrCode = "PROCTOR_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid test ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrLoadFailed:
		return "Error loading test information."
	case ErrRegistrationFailed:
		return "Registration failed. Please try again."
	case ErrSubmissionFailed:
		return "Failed to submit test. Please try again."
	case ErrInvalidState:
		return "This action is not available in the current session state."
	case ErrUnknownQuestion:
		return "The question does not exist in this test."
	case ErrProctorUnavailable:
		return "Proctoring is not available for this session."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
