package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorToCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int32
	}{
		{"not found", NewNotFound("storage", "x"), CodeNotFound},
		{"missing reference", NewMissingReference("parent storage", "x"), CodeInvalidReference},
		{"malformed reference", NewMalformedReference("parent_id", "x"), CodeInvalidIdentifier},
		{"malformed id", NewInvalidIdentifier("id", "x"), CodeInvalidIdentifier},
		{"cycle", Wrap(ErrCycleRejected, "move"), CodeCycleRejected},
		{"nothing to move", ErrNothingToMove, CodeNothingToMove},
		{"conflict", ErrConcurrentModification, CodeConcurrentMod},
		{"validation", NewValidation("price", "negative"), CodeInvalidRequest},
		{"missing field", NewMissingField("name"), CodeInvalidRequest},
		{"token", ErrInvalidToken, CodeAuthFailed},
		{"unknown op", ErrUnknownOperation, CodeUnknownOperation},
		{"other", fmt.Errorf("disk on fire"), CodeInternal},
		{"nil", nil, CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorToCode(tt.err); got != tt.want {
				t.Errorf("ErrorToCode(%v) = %s, want %s", tt.err, CodeName(got), CodeName(tt.want))
			}
		})
	}
}

func TestMissingReferenceMatchesBoth(t *testing.T) {
	err := NewMissingReference("space", "abc")
	if !Is(err, ErrInvalidReference) || !Is(err, ErrNotFound) {
		t.Errorf("%v should match ErrInvalidReference and ErrNotFound", err)
	}
}

func TestCodeRoundTrip(t *testing.T) {
	for _, sentinel := range []error{
		ErrNotFound, ErrInvalidIdentifier, ErrInvalidReference,
		ErrCycleRejected, ErrNothingToMove, ErrConcurrentModification,
	} {
		if got := CodeToError(ErrorToCode(sentinel)); got != sentinel {
			t.Errorf("round trip of %v gave %v", sentinel, got)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrInvalidIdentifier, http.StatusBadRequest},
		{NewMissingReference("space", "x"), http.StatusUnprocessableEntity},
		{ErrNothingToMove, http.StatusUnprocessableEntity},
		{ErrConcurrentModification, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	if v.Err() != nil {
		t.Fatal("empty collector should return nil")
	}

	v.AddMissing("name")
	v.AddField("price", "negative")

	err := v.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if !Is(err, ErrMissingField) || !Is(err, ErrInvalidValue) {
		t.Errorf("collected error %v should match both sentinels", err)
	}
	if !IsValidation(err) {
		t.Error("collected error should be a validation error")
	}
}
