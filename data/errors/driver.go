package errors

// DriverErrorCode classifies a driver failure.
type DriverErrorCode string

const (
	// CodeNotImplemented marks a call gated behind a capability the
	// driver does not provide. Calls failing a capability check are a
	// caller bug, never retried.
	CodeNotImplemented DriverErrorCode = "NOT_IMPLEMENTED"

	// CodeBackend marks a generic backend call failure.
	CodeBackend DriverErrorCode = "BACKEND"
)

// DriverError wraps a failure raised by or on behalf of a driver.
type DriverError struct {
	Code       DriverErrorCode
	DriverType string
	Message    string
	Err        error
}

func (e *DriverError) Error() string {
	return format(e.Err, "vgate: driver '%s' [%s]: %s", e.DriverType, e.Code, e.Message)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// DriverNotImplemented reports a capability-gated call against a driver
// that lacks the capability.
func DriverNotImplemented(driverType, capability string) *DriverError {
	return &DriverError{
		Code:       CodeNotImplemented,
		DriverType: driverType,
		Message:    "capability '" + capability + "' not supported",
	}
}

// Driver wraps a backend call failure.
func Driver(err error, driverType, msg string, args ...any) *DriverError {
	return &DriverError{
		Code:       CodeBackend,
		DriverType: driverType,
		Message:    format(nil, msg, args...),
		Err:        err,
	}
}

// IsNotImplemented reports whether err is a NOT_IMPLEMENTED driver error.
func IsNotImplemented(err error) bool {
	var de *DriverError
	return As(err, &de) && de.Code == CodeNotImplemented
}
