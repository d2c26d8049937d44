package importer

import "fmt"

// ValidationError is a structural or per-item validation failure. Msg is
// operator-facing and already names the offending path.
type ValidationError struct {
	Path string
	Msg  string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(path, format string, args ...any) *ValidationError {
	return &ValidationError{Path: path, Msg: fmt.Sprintf(format, args...)}
}
