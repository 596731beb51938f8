package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeInvalidQuantity, status: http.StatusBadRequest, publicMsg: "invalid quantity", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeMergeInProgress, status: http.StatusConflict, publicMsg: "cart merge in progress", retryable: true},
		{code: CodeStorage, status: http.StatusInternalServerError, publicMsg: "local storage unavailable", retryable: true, detailsOK: true},
		{code: CodeRemote, status: http.StatusBadGateway, publicMsg: "remote cart unavailable", retryable: true, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeInvalidQuantity, "quantity out of range")
	if base.Code() != CodeInvalidQuantity {
		t.Fatalf("expected invalid quantity code, got %s", base.Code())
	}
	if base.Message() != "quantity out of range" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"quantity": 9})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("disk full")
	wrapped := Wrap(CodeStorage, cause, "save guest cart")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if !strings.Contains(wrapped.Error(), "disk full") {
		t.Fatalf("expected cause in message, got %q", wrapped.Error())
	}
}

func TestIsCodeFollowsChain(t *testing.T) {
	err := fmt.Errorf("merge: %w", New(CodeRemote, "fetch cart"))
	if !IsCode(err, CodeRemote) {
		t.Fatalf("expected remote code through wrapping")
	}
	if IsCode(err, CodeStorage) {
		t.Fatalf("unexpected storage match")
	}
	if IsCode(stdErrors.New("plain"), CodeRemote) {
		t.Fatalf("plain errors carry no code")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}
