package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrBookMissing, http.StatusNotFound},
		{ErrInvalidQuery, http.StatusBadRequest},
		{ErrTextMissing, http.StatusNotFound},
		{ErrBuildRunning, http.StatusConflict},
		{ErrBuildFailed, http.StatusInternalServerError},
		{ErrInternal, http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("context: %w", ErrNotFound), http.StatusNotFound},
	}
	for _, tt := range tests {
		if got := HTTPStatusCode(tt.err); got != tt.want {
			t.Errorf("HTTPStatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAppErrorOverridesSentinelStatus(t *testing.T) {
	err := New(ErrInvalidQuery, http.StatusUnprocessableEntity, "pattern too long")
	if got := HTTPStatusCode(err); got != http.StatusUnprocessableEntity {
		t.Errorf("HTTPStatusCode = %d, want the AppError status 422", got)
	}
	if !errors.Is(err, ErrInvalidQuery) {
		t.Error("AppError does not unwrap to its sentinel")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ErrBookMissing, http.StatusNotFound, "book %d not found", 42)
	if err.Message != "book 42 not found" {
		t.Errorf("message = %q", err.Message)
	}
	if want := "book not found: book 42 not found"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(ErrNotFound) || !IsNotFound(ErrBookMissing) {
		t.Error("not-found sentinels not classified as misses")
	}
	if IsNotFound(ErrInvalidQuery) || IsNotFound(ErrInternal) {
		t.Error("non-miss errors classified as misses")
	}
	if !IsNotFound(New(ErrTextMissing, http.StatusNotFound, "gone")) {
		t.Error("404 AppError not classified as a miss")
	}
}
