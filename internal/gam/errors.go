package gam

import "fmt"

// RemoteError is a failed ad server API call. Fault carries the SOAP fault
// string when the server returned one.
type RemoteError struct {
	Service    string
	Method     string
	StatusCode int
	Fault      string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Fault != "":
		return fmt.Sprintf("%s.%s: fault: %s", e.Service, e.Method, e.Fault)
	case e.Err != nil:
		return fmt.Sprintf("%s.%s: %v", e.Service, e.Method, e.Err)
	default:
		return fmt.Sprintf("%s.%s: http %d", e.Service, e.Method, e.StatusCode)
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }
