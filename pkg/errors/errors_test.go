package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
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
		{code: CodeQuantityExceeded, status: http.StatusUnprocessableEntity, publicMsg: "quantity exceeds the allowed maximum", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", detailsOK: true},
		{code: CodeStorage, status: http.StatusServiceUnavailable, publicMsg: "cart storage unavailable", retryable: true},
		{code: CodeAPI, status: http.StatusBadGateway, publicMsg: "upstream api error", retryable: true},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true},
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
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "foo"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

type coderErr struct{}

func (coderErr) Error() string { return "coder" }

func (coderErr) AppError() *Error { return New(CodeNotFound, "missing") }

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeConflict, "dup")
	if got := As(err); got == nil || got.Code() != CodeConflict {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if got := As(fmt.Errorf("wrapped: %w", coderErr{})); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As should convert Coder implementations, got %v", got)
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("plain errors have no application code")
	}
}

func TestDumpCapturesChainAndPGDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "cart_snapshots_pkey", TableName: "cart_snapshots"}
	err := Wrap(CodeStorage, fmt.Errorf("save: %w", pgErr), "persist cart")

	d := Dump(err)
	if d.Code != CodeStorage {
		t.Fatalf("expected storage code, got %s", d.Code)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}
	if d.PGCode != "23505" || d.PGTable != "cart_snapshots" {
		t.Fatalf("pg details not captured: %+v", d)
	}
	fields := d.Fields()
	if fields["pg_constraint"] != "cart_snapshots_pkey" {
		t.Fatalf("expected pg constraint field, got %v", fields)
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("Dump(nil) should be empty")
	}
}
