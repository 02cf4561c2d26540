package errs_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"law_arch/internal/errs"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"nil", nil, ""},
		{"transient", &errs.FetchError{URL: "u", StatusCode: 503, Transient: true}, errs.KindTransient},
		{"permanent", &errs.FetchError{URL: "u", StatusCode: 403}, errs.KindPermanent},
		{"not found", &errs.NotFoundError{URL: "u"}, errs.KindNotFound},
		{"malformed", &errs.MalformedSourceError{Format: "clml", Err: errors.New("eof")}, errs.KindMalformed},
		{"structural", &errs.StructuralMismatchError{Format: "html", Missing: "body"}, errs.KindStructural},
		{"citation", &errs.CitationFormatError{Jurisdiction: "uk", Raw: "x"}, errs.KindCitation},
		{"hierarchy", &errs.HierarchyError{Parent: "1", Child: "1"}, errs.KindHierarchy},
		{"invariant", &errs.InvariantViolationError{Citation: "1"}, errs.KindInvariant},
		{"config", &errs.ConfigError{Subject: "db", Err: os.ErrNotExist}, errs.KindConfig},
		{"storage", &errs.StorageError{Op: "write", Err: errors.New("disk full")}, errs.KindStorage},
		{"unsupported", &errs.UnsupportedError{Source: "us-irs", Operation: "section fetch"}, errs.KindUnsupported},
		{"cancelled", context.Canceled, errs.KindCancelled},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), errs.KindCancelled},
		{"wrapped", fmt.Errorf("section 7: %w", &errs.NotFoundError{URL: "u"}), errs.KindNotFound},
		{"unknown", errors.New("boom"), errs.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errs.KindOf(tt.err))
		})
	}
}

type timeout struct{}

func (timeout) Error() string   { return "i/o timeout" }
func (timeout) Timeout() bool   { return true }
func (timeout) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	assert.True(t, errs.IsTransient(&errs.FetchError{StatusCode: 429, Transient: true}))
	assert.True(t, errs.IsTransient(fmt.Errorf("dial: %w", timeout{})))
	assert.False(t, errs.IsTransient(&errs.FetchError{StatusCode: 400}))
	assert.False(t, errs.IsTransient(&errs.NotFoundError{}))
	assert.False(t, errs.IsTransient(nil))
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := &errs.StorageError{Op: "write section", Err: os.ErrPermission}
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, "storage write section: permission denied", err.Error())
	assert.Equal(t, "fetch https://x/1: HTTP 500", (&errs.FetchError{URL: "https://x/1", StatusCode: 500}).Error())
	assert.True(t, errs.IsNotFound(fmt.Errorf("x: %w", &errs.NotFoundError{})))
}
