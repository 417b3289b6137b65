package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/nucmed-tracker/internal/application"
)

func TestRequireSession(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without a token", func(t *testing.T) {
		t.Parallel()

		handler := RequireSession(fakeSessionValidator{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler should not run without a token")
		}))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/patients", nil))

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
	})

	t.Run("maps expired sessions to a dedicated error code", func(t *testing.T) {
		t.Parallel()

		handler := RequireSession(fakeSessionValidator{err: application.ErrSessionExpired}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler should not run for an expired session")
		}))

		req := httptest.NewRequest(http.MethodGet, "/patients", nil)
		req.Header.Set("Authorization", "Bearer stale-token")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		if body := recorder.Body.String(); !strings.Contains(body, "AUTH_SESSION_EXPIRED") {
			t.Fatalf("expected error code in body, got %s", body)
		}
	})

	t.Run("attaches the principal to the request context", func(t *testing.T) {
		t.Parallel()

		expected := application.Principal{UserID: "usr-1", RoleID: "secretary", Permissions: []string{application.PermissionPatientsManage}}

		var captured application.Principal
		handler := RequireSession(fakeSessionValidator{principal: expected}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				t.Fatal("expected a principal in the request context")
			}
			captured = principal
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/patients", nil)
		req.AddCookie(&http.Cookie{Name: "session_token", Value: "valid-token"})
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if captured.UserID != expected.UserID || captured.RoleID != expected.RoleID {
			t.Fatalf("unexpected principal: %#v", captured)
		}
	})

	t.Run("converts validator failures into 500 responses", func(t *testing.T) {
		t.Parallel()

		handler := RequireSession(fakeSessionValidator{err: context.DeadlineExceeded}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler should not run when validation fails")
		}))

		req := httptest.NewRequest(http.MethodGet, "/patients", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", recorder.Code)
		}
	})
}

type fakeSessionValidator struct {
	principal application.Principal
	err       error
}

func (f fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	return f.principal, f.err
}
