package outbound

import (
	"fmt"
	"strings"
)

// UnknownEndpointError is returned when an endpoint slug or handle does not
// belong to the catalog.
type UnknownEndpointError struct {
	Catalog string
	Ref     string
}

func (e *UnknownEndpointError) Error() string {
	return fmt.Sprintf("unknown endpoint %s in catalog %s", e.Ref, e.Catalog)
}

// UnsupportedMethodError is returned for any method other than GET.
type UnsupportedMethodError struct {
	Method   string
	Endpoint string
}

func (e *UnsupportedMethodError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("unsupported method %s: only GET is supported", e.Method)
	}
	return fmt.Sprintf("endpoint %s: unsupported method %s: only GET is supported", e.Endpoint, e.Method)
}

// TransportError reports a failed request. It is never cached or retried.
type TransportError struct {
	URI        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GET %s -> %d: %v", e.URI, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("GET %s: %v", e.URI, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError reports a malformed catalog, endpoint, work unit or
// pipeline definition detected at construction.
type ValidationError struct {
	Scope  string // e.g. "catalog NHLPublicAPI"
	Field  string // e.g. "endpoints[2].slug"
	Reason string
}

func (e *ValidationError) Error() string {
	parts := []string{"validation"}
	if e.Scope != "" {
		parts = append(parts, e.Scope)
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	return strings.Join(parts, ": ") + ": " + e.Reason
}
