// Package errs defines the error taxonomy shared by the pipeline stages.
//
// Every error carries a Kind so the runner can decide between retrying,
// skipping and recording a failure without string matching.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type Kind string

const (
	KindTransient   Kind = "transient"
	KindPermanent   Kind = "permanent"
	KindNotFound    Kind = "not_found"
	KindMalformed   Kind = "malformed_source"
	KindStructural  Kind = "structural_mismatch"
	KindCitation    Kind = "citation_format"
	KindHierarchy   Kind = "hierarchy"
	KindInvariant   Kind = "invariant_violation"
	KindConfig      Kind = "config"
	KindStorage     Kind = "storage"
	KindCancelled   Kind = "cancelled"
	KindUnsupported Kind = "unsupported"
	KindUnknown     Kind = "unknown"
)

// FetchError is a network or HTTP failure. Transient failures (timeouts, 5xx,
// 429, connection errors) are eligible for retry.
type FetchError struct {
	URL        string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NotFoundError means the citation does not exist at the source.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.URL) }

type MalformedSourceError struct {
	Format string
	Err    error
}

func (e *MalformedSourceError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Format, e.Err)
}

func (e *MalformedSourceError) Unwrap() error { return e.Err }

// StructuralMismatchError is returned together with a degraded node: the
// payload parsed but an expected element was missing.
type StructuralMismatchError struct {
	Format  string
	Missing string
}

func (e *StructuralMismatchError) Error() string {
	return fmt.Sprintf("%s payload is missing %s", e.Format, e.Missing)
}

type CitationFormatError struct {
	Jurisdiction string
	Raw          string
	Reason       string
}

func (e *CitationFormatError) Error() string {
	return fmt.Sprintf("invalid citation %q for %s: %s", e.Raw, e.Jurisdiction, e.Reason)
}

type HierarchyError struct {
	Parent string
	Child  string
	Reason string
}

func (e *HierarchyError) Error() string {
	return fmt.Sprintf("cannot attach %s under %s: %s", e.Child, e.Parent, e.Reason)
}

type InvariantViolationError struct {
	Citation string
	Reason   string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violated at %s: %s", e.Citation, e.Reason)
}

// ConfigError aborts a whole run.
type ConfigError struct {
	Subject string
	Err     error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config %s: %v", e.Subject, e.Err) }

func (e *ConfigError) Unwrap() error { return e.Err }

// StorageError is a failed read or write against the durable store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// UnsupportedError marks an adapter capability the source does not offer.
type UnsupportedError struct {
	Source    string
	Operation string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Source, e.Operation)
}

// KindOf classifies err. Unknown errors are reported as KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var (
		fetchErr    *FetchError
		notFound    *NotFoundError
		malformed   *MalformedSourceError
		structural  *StructuralMismatchError
		citationErr *CitationFormatError
		hierarchy   *HierarchyError
		invariant   *InvariantViolationError
		configErr   *ConfigError
		unsupported *UnsupportedError
		storage     *StorageError
	)
	switch {
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &fetchErr):
		if fetchErr.Transient {
			return KindTransient
		}
		return KindPermanent
	case errors.As(err, &malformed):
		return KindMalformed
	case errors.As(err, &structural):
		return KindStructural
	case errors.As(err, &citationErr):
		return KindCitation
	case errors.As(err, &hierarchy):
		return KindHierarchy
	case errors.As(err, &invariant):
		return KindInvariant
	case errors.As(err, &configErr):
		return KindConfig
	case errors.As(err, &unsupported):
		return KindUnsupported
	case errors.As(err, &storage):
		return KindStorage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	}
	return KindUnknown
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Transient
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
