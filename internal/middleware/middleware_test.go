package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/models"
)

type fixedState models.SessionState

func (s fixedState) State() models.SessionState { return models.SessionState(s) }

func TestRequireSession(t *testing.T) {
	tests := []struct {
		name         string
		state        models.SessionState
		wantStatus   int
		wantLocation string
		wantCalled   bool
	}{
		{"authenticated", models.SessionAuthenticated, http.StatusOK, "", true},
		{"verifying", models.SessionVerifying, http.StatusServiceUnavailable, "", false},
		{"unauthenticated", models.SessionUnauthenticated, http.StatusFound, "https://app.example.com/login", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSessionMiddleware(fixedState(tt.state), "https://app.example.com/login")
			called := false
			handler := m.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/holdings", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithOutput("info", &buf)

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	out := buf.String()
	for _, want := range []string{`"status":418`, `"path":"/health"`, `"component":"http"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %s", out, want)
		}
	}
}

func TestValidateSymbol(t *testing.T) {
	valid := []string{"TCS", "infy", " M&M ", "BAJAJ-AUTO", "NIFTY.50"}
	for _, s := range valid {
		if !ValidateSymbol(s) {
			t.Errorf("ValidateSymbol(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "   ", "TOO LONG NAME", "<script>", strings.Repeat("A", 21)}
	for _, s := range invalid {
		if ValidateSymbol(s) {
			t.Errorf("ValidateSymbol(%q) = true, want false", s)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  tcs\x00\x07 "); got != "tcs" {
		t.Errorf("SanitizeString() = %q, want %q", got, "tcs")
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.HasErrors() {
		t.Fatal("empty ValidationErrors reports errors")
	}
	errs.Add("username", "is required")
	errs.Add("password", "is required")

	if got := errs.Error(); got != "username: is required; password: is required" {
		t.Errorf("Error() = %q", got)
	}

	rec := httptest.NewRecorder()
	errs.WriteJSON(rec)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
