package domain

import (
	"errors"
	"testing"
)

func TestDomainErrors_AreDistinctAndUsableWithErrorsIs(t *testing.T) {
	all := []error{
		ErrInvalidUpload,
		ErrPayloadTooLarge,
		ErrInvalidYAMLSyntax,
		ErrInvalidCVSchema,
		ErrUnsafeDocumentPath,
		ErrGenerationDisabled,
		ErrRenderTimeout,
		ErrRenderBusy,
		ErrNotifierDisabled,
		ErrInvalidAPIKey,
		ErrTokenStoreNotReady,
	}

	seen := make(map[error]bool, len(all))
	for _, err := range all {
		if err == nil {
			t.Fatalf("domain error must not be nil")
		}
		if err.Error() == "" {
			t.Fatalf("domain error message should not be empty")
		}
		if seen[err] {
			t.Fatalf("domain errors must be distinct: %v", err)
		}
		seen[err] = true

		wrapped := errors.Join(errors.New("context"), err)
		if !errors.Is(wrapped, err) {
			t.Fatalf("expected errors.Is to match %v", err)
		}
	}
}
