package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForMapsCodes(t *testing.T) {
	t.Parallel()

	if got := MetadataFor(CodeValidation); got.HTTPStatus != http.StatusBadRequest || !got.DetailsAllowed {
		t.Fatalf("validation metadata wrong: %+v", got)
	}
	if got := MetadataFor(CodeUnauthorized); got.HTTPStatus != http.StatusUnauthorized || got.DetailsAllowed {
		t.Fatalf("unauthorized metadata wrong: %+v", got)
	}
	if got := MetadataFor(CodeStateConflict); got.HTTPStatus != http.StatusUnprocessableEntity {
		t.Fatalf("state conflict metadata wrong: %+v", got)
	}
	if got := MetadataFor(CodeIdempotency); got.HTTPStatus != http.StatusConflict {
		t.Fatalf("idempotency metadata wrong: %+v", got)
	}
	if got := MetadataFor(CodeRateLimit); got.HTTPStatus != http.StatusTooManyRequests {
		t.Fatalf("rate limit metadata wrong: %+v", got)
	}
	if got := MetadataFor(CodeDependency); got.HTTPStatus != http.StatusServiceUnavailable || !got.Retryable {
		t.Fatalf("dependency metadata wrong: %+v", got)
	}
	if got := MetadataFor(CodeInternal); got.PublicMessage != "internal server error" || !got.Retryable {
		t.Fatalf("internal metadata wrong: %+v", got)
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	t.Parallel()

	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError || !meta.Retryable {
		t.Fatalf("expected internal mapping, got %+v", meta)
	}
}

func TestWrapPreservesCauseAndCode(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "saving row")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("cause lost from chain")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if wrapped.Error() != "CONFLICT: saving row" {
		t.Fatalf("unexpected rendering %q", wrapped.Error())
	}
}

func TestWithDetailsRoundTrips(t *testing.T) {
	t.Parallel()

	err := New(CodeValidation, "missing field").WithDetails(map[string]any{"field": "email"})
	details, ok := err.Details().(map[string]any)
	if !ok || details["field"] != "email" {
		t.Fatalf("details not preserved: %#v", err.Details())
	}
}

func TestAsExtractsFromChain(t *testing.T) {
	t.Parallel()

	inner := New(CodeForbidden, "no entry")
	outer := Wrap(CodeInternal, inner, "handling request")
	if got := As(outer); got == nil || got.Code() != CodeInternal {
		t.Fatalf("expected outermost typed error, got %v", got)
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("As on untyped error should return nil")
	}
}

func TestNilReceiverAccessors(t *testing.T) {
	t.Parallel()

	var err *Error
	if err.Code() != CodeInternal {
		t.Fatalf("nil error should classify as internal")
	}
	if err.Message() != "" || err.Details() != nil || err.Error() != "" || err.Unwrap() != nil {
		t.Fatalf("nil receiver accessors should be inert")
	}
	if err.WithDetails("x") != nil {
		t.Fatalf("WithDetails on nil should stay nil")
	}
}
