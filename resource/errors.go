package resource

import (
	"errors"
	"strings"
)

// Sentinel causes carried by LoadError. Test with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrMalformed    = errors.New("malformed")
	ErrUnsupported  = errors.New("unsupported format")
	ErrTypeMismatch = errors.New("type mismatch")
	ErrNotLoaded    = errors.New("not loaded")
	ErrLoadInFrame  = errors.New("load during frame pass")
	ErrCycle        = errors.New("dependency cycle")
)

// LoadError is returned by every failing cache operation. It is a
// recoverable condition: callers log it and may substitute a fallback.
type LoadError struct {
	Path   string
	Kind   error // one of the Err* sentinels
	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("resource: ")
	b.WriteString(e.Path)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap exposes both the sentinel kind and the underlying cause.
func (e *LoadError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func loadError(p string, kind error, detail string, cause error) *LoadError {
	return &LoadError{Path: p, Kind: kind, Detail: detail, Cause: cause}
}
