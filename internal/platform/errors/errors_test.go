package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := stderrs.New("disk gone")
	err := Wrap(cause, ErrorCodeDB, "write commit")
	if got := err.Error(); got != "write commit: disk gone" {
		t.Fatalf("Error() = %q", got)
	}
	if !stderrs.Is(err, cause) {
		t.Fatalf("wrapped cause should satisfy errors.Is")
	}
	if Root(err) != cause {
		t.Fatalf("Root should return the deepest cause")
	}
}

func TestCodeOfAndIsCode(t *testing.T) {
	err := Conflictf("commit version %d already exists", 7)
	if CodeOf(err) != ErrorCodeConflict {
		t.Fatalf("CodeOf = %d, want Conflict", CodeOf(err))
	}
	if !IsCode(err, ErrorCodeConflict) {
		t.Fatalf("IsCode(Conflict) should be true")
	}
	if CodeOf(stderrs.New("plain")) != ErrorCodeUnknown {
		t.Fatalf("foreign errors default to Unknown")
	}

	// code survives wrapping with fmt
	wrapped := fmt.Errorf("merge attempt 2: %w", err)
	if !IsCode(wrapped, ErrorCodeConflict) {
		t.Fatalf("code should survive fmt wrapping")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFoundf("table %q", "availability"), http.StatusNotFound},
		{InvalidArgf("bad cursor"), http.StatusUnprocessableEntity},
		{Conflictf("version race"), http.StatusConflict},
		{DuplicateKeyf("dup"), http.StatusConflict},
		{Newf(ErrorCodeValidation, "bad input"), http.StatusBadRequest},
		{JSONErrf("parse"), http.StatusBadRequest},
		{TooManyRequestsf("429"), http.StatusTooManyRequests},
		{Unavailablef("upstream 503"), http.StatusServiceUnavailable},
		{DBf("boom"), http.StatusInternalServerError},
		{stderrs.New("foreign"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestWireFrom(t *testing.T) {
	err := WithField(Newf(ErrorCodeValidation, "start date after end date"), "start_date")
	w := WireFrom(err)
	if w.Code != ErrorCodeValidation || w.Field != "start_date" {
		t.Fatalf("WireFrom = %+v", w)
	}
	if w := WireFrom(nil); w.Code != 0 || w.Message != "" {
		t.Fatalf("WireFrom(nil) should be zero value")
	}
	if w := WireFrom(stderrs.New("x")); w.Code != ErrorCodeUnknown || w.Message != "x" {
		t.Fatalf("WireFrom(foreign) = %+v", w)
	}
}

func TestWrapIf(t *testing.T) {
	if WrapIf(nil, ErrorCodeDB, "nope") != nil {
		t.Fatalf("WrapIf(nil) should be nil")
	}
	if err := WrapIf(stderrs.New("x"), ErrorCodeDB, "db"); !IsCode(err, ErrorCodeDB) {
		t.Fatalf("WrapIf should wrap with code")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Unavailablef("502 from upstream")) {
		t.Fatalf("Unavailable should be retryable")
	}
	if !Retryable(TooManyRequestsf("rate limited")) {
		t.Fatalf("TooManyRequests should be retryable")
	}
	if Retryable(Conflictf("commit race")) {
		t.Fatalf("Conflict is handled by the merge loop, not generic retry")
	}
	if Retryable(InvalidArgf("bad page size")) {
		t.Fatalf("InvalidArgument must not be retryable")
	}
	if Retryable(nil) {
		t.Fatalf("nil is not retryable")
	}
}

func TestIsConflict(t *testing.T) {
	if !IsConflict(Conflictf("version 3 exists")) {
		t.Fatalf("coded conflict not detected")
	}
	if !IsConflict(stderrs.New("ConcurrentAppendException: commit failed")) {
		t.Fatalf("text fallback 'concurrent' not detected")
	}
	if !IsConflict(fmt.Errorf("merge: %w", stderrs.New("commit conflict on version 5"))) {
		t.Fatalf("text fallback 'conflict' not detected through wrapping")
	}
	if IsConflict(stderrs.New("connection refused")) {
		t.Fatalf("unrelated error misclassified as conflict")
	}
	if IsConflict(nil) {
		t.Fatalf("nil is not a conflict")
	}
}
