// Package testutil provides shared test helpers and fixtures.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/platetemp/internal/plate"
)

// AnalyticCentreLeft is the series solution of the reference plate (15x10,
// edges 10/5/5/20) at (5, 5).
const AnalyticCentreLeft = 11.869

// ReferenceDomain returns the 15x10 plate with bottom 10, right 5, left 5
// and top 20.
func ReferenceDomain(t testing.TB) plate.Domain {
	t.Helper()
	return MustDomain(t, 15, 10, 10, 5, 5, 20)
}

// MustDomain builds a domain or fails the test.
func MustDomain(t testing.TB, width, height float64, temps ...float64) plate.Domain {
	t.Helper()
	d, err := plate.NewDomain(width, height, temps)
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}
	return d
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request with an optional body.
func NewTestRequest(method, path, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// DecodeJSON decodes the recorder body into a T or fails the test.
func DecodeJSON[T any](t testing.TB, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

// AssertJSONError checks the status and that the body is {"error": "..."}.
func AssertJSONError(t testing.TB, rec *httptest.ResponseRecorder, want int) string {
	t.Helper()
	AssertStatusCode(t, rec.Code, want)
	body := DecodeJSON[map[string]string](t, rec)
	msg, ok := body["error"]
	if !ok || msg == "" {
		t.Errorf("expected error message in body, got %v", body)
	}
	return msg
}
