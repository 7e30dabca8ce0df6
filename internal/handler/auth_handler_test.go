package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hitoshi/seminar/internal/auth"
	"github.com/hitoshi/seminar/internal/metrics"
	"github.com/hitoshi/seminar/internal/middleware"
	"github.com/hitoshi/seminar/internal/model"
)

func newTestAuthHandler(t *testing.T, svc *mockAuthService, recorder *mockLoginRecorder) *AuthHandler {
	t.Helper()
	return NewAuthHandler(svc, newTestRenderer(t), middleware.CookieConfig{MaxAge: 3600}, recorder)
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

// --- GET /login ---

func TestAuthHandler_LoginPage_KeepsNext(t *testing.T) {
	h := newTestAuthHandler(t, &mockAuthService{}, &mockLoginRecorder{})

	w := httptest.NewRecorder()
	h.LoginPage(w, newRequest(t, http.MethodGet, "/login?next=%2Fprofile%2Fedit", nil))

	assertStatus(t, w.Result(), http.StatusOK)
	assertBodyContains(t, w.Body.String(), `name="next" value="/profile/edit"`)
}

func TestAuthHandler_LoginPage_LoggedIn_Redirects(t *testing.T) {
	h := newTestAuthHandler(t, &mockAuthService{}, &mockLoginRecorder{})

	req := withUserID(newRequest(t, http.MethodGet, "/login", nil), "user-1")
	w := httptest.NewRecorder()
	h.LoginPage(w, req)

	assertRedirect(t, w.Result(), auth.DefaultRedirect)
}

// --- POST /login ---

func TestAuthHandler_Login_Success_SetsCookieAndRedirects(t *testing.T) {
	tests := []struct {
		name string
		next string
		want string
	}{
		{"local next", "/profile/7", "/profile/7"},
		{"no next", "", auth.DefaultRedirect},
		{"external next", "//evil.example.com", auth.DefaultRedirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(ctx context.Context, f *auth.LoginForm) (*model.Session, error) {
					if f.Email != "jana@example.com" || f.Password != "tajneheslo42" {
						t.Errorf("unexpected credentials: %+v", f)
					}
					return &model.Session{ID: "session-123", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
				},
			}
			recorder := &mockLoginRecorder{}
			h := newTestAuthHandler(t, svc, recorder)

			values := url.Values{"email": {"jana@example.com"}, "password": {"tajneheslo42"}, "next": {tt.next}}
			w := httptest.NewRecorder()
			h.Login(w, newRequest(t, http.MethodPost, "/login", values))

			resp := w.Result()
			assertRedirect(t, resp, tt.want)
			assertFlash(t, resp, "flash.logged_in")

			c := sessionCookie(resp)
			if c == nil || c.Value != "session-123" {
				t.Fatalf("expected session cookie, got %+v", c)
			}
			if !c.HttpOnly {
				t.Error("expected HttpOnly session cookie")
			}
			if len(recorder.results) != 1 || recorder.results[0] != metrics.ResultSuccess {
				t.Errorf("login metrics = %v", recorder.results)
			}
		})
	}
}

func TestAuthHandler_Login_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantText   string
		wantResult string
	}{
		{"wrong credentials", model.NewInvalidCredentialsError(), "Incorrect email or password.", metrics.ResultFailure},
		{"unverified email", model.NewEmailNotVerifiedError(), "Your email has not been verified yet.", metrics.ResultFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(ctx context.Context, f *auth.LoginForm) (*model.Session, error) {
					return nil, tt.err
				},
			}
			recorder := &mockLoginRecorder{}
			h := newTestAuthHandler(t, svc, recorder)

			values := url.Values{"email": {"jana@example.com"}, "password": {"zle"}}
			w := httptest.NewRecorder()
			h.Login(w, newRequest(t, http.MethodPost, "/login", values))

			resp := w.Result()
			assertStatus(t, resp, http.StatusOK)
			assertBodyContains(t, w.Body.String(), tt.wantText, `value="jana@example.com"`)
			if sessionCookie(resp) != nil {
				t.Error("expected no session cookie")
			}
			if len(recorder.results) != 1 || recorder.results[0] != tt.wantResult {
				t.Errorf("login metrics = %v", recorder.results)
			}
		})
	}
}

func TestAuthHandler_Login_InternalError_Returns500(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, f *auth.LoginForm) (*model.Session, error) {
			return nil, errors.New("db down")
		},
	}
	h := newTestAuthHandler(t, svc, &mockLoginRecorder{})

	w := httptest.NewRecorder()
	h.Login(w, newRequest(t, http.MethodPost, "/login", url.Values{"email": {"a@b.com"}, "password": {"x"}}))

	assertStatus(t, w.Result(), http.StatusInternalServerError)
}

// --- POST /logout ---

func TestAuthHandler_Logout_DeletesSessionAndClearsCookie(t *testing.T) {
	var deleted string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			deleted = sessionID
			return nil
		},
	}
	h := newTestAuthHandler(t, svc, &mockLoginRecorder{})

	req := withSession(newRequest(t, http.MethodPost, "/logout", url.Values{}), &model.Session{ID: "session-123", UserID: "user-1"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	resp := w.Result()
	assertRedirect(t, resp, "/")
	assertFlash(t, resp, "flash.logged_out")
	if deleted != "session-123" {
		t.Errorf("deleted session = %q", deleted)
	}
	if c := sessionCookie(resp); c == nil || c.MaxAge >= 0 {
		t.Errorf("expected expired session cookie, got %+v", c)
	}
}

func TestAuthHandler_Logout_ServiceError_StillClearsCookie(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			return errors.New("db down")
		},
	}
	h := newTestAuthHandler(t, svc, &mockLoginRecorder{})

	req := withSession(newRequest(t, http.MethodPost, "/logout", url.Values{}), &model.Session{ID: "session-123", UserID: "user-1"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	resp := w.Result()
	assertRedirect(t, resp, "/")
	if sessionCookie(resp) == nil {
		t.Error("expected session cookie to be cleared")
	}
}
