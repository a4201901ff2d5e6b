package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := map[Code]int{
		CodeNotFound:            http.StatusNotFound,
		CodeInvalidState:        http.StatusUnprocessableEntity,
		CodeEntitlementRequired: http.StatusPaymentRequired,
		CodeNoEligibleProviders: http.StatusConflict,
		CodeDependency:          http.StatusServiceUnavailable,
	}
	for code, status := range cases {
		if got := MetadataFor(code).HTTPStatus; got != status {
			t.Fatalf("code %s: expected status %d, got %d", code, status, got)
		}
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesChain(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(CodeDependency, cause, "capacity service unreachable")

	typed := As(err)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	if typed.Unwrap() != cause {
		t.Fatal("expected cause to be preserved")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeInvalidState, "assignment already resolved"))
	if !IsCode(err, CodeInvalidState) {
		t.Fatal("expected IsCode to see through wrapping")
	}
	if IsCode(err, CodeNotFound) {
		t.Fatal("did not expect NotFound")
	}
}
