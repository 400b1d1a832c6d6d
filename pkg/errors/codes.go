package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Aliases used at call sites.
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeNotImplemented = ErrCodeNotImplemented
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrorCode("UNKNOWN")
)

// Molecule Module Error Codes
const (
	ErrCodeMoleculeInvalidFormat ErrorCode = "MOL_001"
	ErrCodeAtomNotFound          ErrorCode = "MOL_002"
	ErrCodeDuplicateAtom         ErrorCode = "MOL_003"
	ErrCodeMoleculeNotSolved     ErrorCode = "MOL_004"
)

// Charge Module Error Codes
const (
	ErrCodeAssignment            ErrorCode = "CHG_001"
	ErrCodeSolverInfeasible      ErrorCode = "CHG_002"
	ErrCodeSolverTimeout         ErrorCode = "CHG_003"
	ErrCodeDegenerateConfidence  ErrorCode = "CHG_004"
	ErrCodeCanonizationFailed    ErrorCode = "CHG_005"
	ErrCodeRepositoryUnavailable ErrorCode = "CHG_006"
	ErrCodeVariantUnsupported    ErrorCode = "CHG_007"
)

// Infrastructure Error Codes
const (
	CodeDatabaseError     = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeMessageQueueError = ErrCodeExternalService
	CodeStorageError      = ErrCodeExternalService
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeMoleculeInvalidFormat: http.StatusBadRequest,
	ErrCodeAtomNotFound:          http.StatusBadRequest,
	ErrCodeDuplicateAtom:         http.StatusBadRequest,
	ErrCodeMoleculeNotSolved:     http.StatusConflict,

	ErrCodeAssignment:            http.StatusUnprocessableEntity,
	ErrCodeSolverInfeasible:      http.StatusUnprocessableEntity,
	ErrCodeSolverTimeout:         http.StatusGatewayTimeout,
	ErrCodeDegenerateConfidence:  http.StatusUnprocessableEntity,
	ErrCodeCanonizationFailed:    http.StatusInternalServerError,
	ErrCodeRepositoryUnavailable: http.StatusServiceUnavailable,
	ErrCodeVariantUnsupported:    http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeMoleculeInvalidFormat: "invalid molecule document",
	ErrCodeAtomNotFound:          "atom not found",
	ErrCodeDuplicateAtom:         "duplicate atom id",
	ErrCodeMoleculeNotSolved:     "molecule has no solved charges",

	ErrCodeAssignment:            "could not find charges for all atoms",
	ErrCodeSolverInfeasible:      "no charge assignment satisfies the total charge",
	ErrCodeSolverTimeout:         "solver time budget exceeded",
	ErrCodeDegenerateConfidence:  "all atoms have zero confidence",
	ErrCodeCanonizationFailed:    "neighborhood canonization failed",
	ErrCodeRepositoryUnavailable: "charge repository unavailable",
	ErrCodeVariantUnsupported:    "unsupported charger variant",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
