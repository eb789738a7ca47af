package ocppj

import "fmt"

// ErrorCode is one of the OCPP-J CALLERROR error codes.
type ErrorCode string

const (
	ErrorNotImplemented       ErrorCode = "NotImplemented"
	ErrorNotSupported         ErrorCode = "NotSupported"
	ErrorInternalError        ErrorCode = "InternalError"
	ErrorProtocolError        ErrorCode = "ProtocolError"
	ErrorSecurityError        ErrorCode = "SecurityError"
	ErrorFormationViolation   ErrorCode = "FormationViolation"
	ErrorPropertyConstraintViolation ErrorCode = "PropertyConstraintViolation"
	ErrorOccurrenceConstraintViolation ErrorCode = "OccurrenceConstraintViolation"
	ErrorTypeConstraintViolation ErrorCode = "TypeConstraintViolation"
	ErrorGenericError          ErrorCode = "GenericError"
)

// OCPPError is the typed carrier for any CALLERROR, whether received from
// the wire or synthesized locally (timeout, buffered, closed socket).
type OCPPError struct {
	Code        ErrorCode
	Description string
	Details     interface{}
}

func (e *OCPPError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func NewError(code ErrorCode, description string, details interface{}) *OCPPError {
	return &OCPPError{Code: code, Description: description, Details: details}
}

func NewGenericError(description string) *OCPPError {
	return NewError(ErrorGenericError, description, nil)
}
