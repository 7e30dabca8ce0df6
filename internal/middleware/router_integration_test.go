package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// TestRouterIntegration_ProtectedGroup_WithMiddlewareChain は
// Session -> RequireLogin をchi.Routerのグループに適用した場合の動作を検証する。
func TestRouterIntegration_ProtectedGroup_WithMiddlewareChain(t *testing.T) {
	r := chi.NewRouter()
	r.Use(NewSessionMiddleware(validSessionRepo("router-test-session", "user-router-test")))
	r.Use(NewCSRFMiddleware(CSRFConfig{}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Group(func(r chi.Router) {
		r.Use(NewRequireLoginMiddleware("/login"))
		r.Get("/profile/edit", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			w.Write([]byte(userID))
		})
	})

	tests := []struct {
		name       string
		path       string
		sessionID  string
		wantStatus int
		wantBody   string
	}{
		{name: "public page anonymous", path: "/", wantStatus: http.StatusOK},
		{name: "protected page anonymous", path: "/profile/edit", wantStatus: http.StatusSeeOther},
		{name: "protected page authenticated", path: "/profile/edit", sessionID: "router-test-session", wantStatus: http.StatusOK, wantBody: "user-router-test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.sessionID != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.sessionID})
			}
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}
