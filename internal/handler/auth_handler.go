// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/seminar/internal/auth"
	"github.com/hitoshi/seminar/internal/flash"
	"github.com/hitoshi/seminar/internal/form"
	"github.com/hitoshi/seminar/internal/metrics"
	"github.com/hitoshi/seminar/internal/middleware"
	"github.com/hitoshi/seminar/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, f *auth.LoginForm) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// LoginRecorder はログイン結果のメトリクスを記録するインターフェース。
type LoginRecorder interface {
	RecordLogin(result string)
}

// AuthHandler はログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	renderer *Renderer
	cookies  middleware.CookieConfig
	metrics  LoginRecorder
}

// NewAuthHandler はAuthHandlerを生成する。recorderがnilの場合は記録しない。
func NewAuthHandler(service AuthServiceInterface, renderer *Renderer, cookies middleware.CookieConfig, recorder LoginRecorder) *AuthHandler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &AuthHandler{
		service:  service,
		renderer: renderer,
		cookies:  cookies,
		metrics:  recorder,
	}
}

// LoginPage はログインフォームを表示する。ログイン済みの場合は遷移先へリダイレクトする。
// GET /login?next=/path
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if isLoggedIn(r) {
		redirect(w, r, auth.SafeRedirect(next))
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageLogin, &pageData{
		Form: map[string]string{"next": next},
	})
}

// Login はログインフォームを処理する。
// 成功時はセッションCookieを設定し、nextまたは既定の遷移先へリダイレクトする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var f auth.LoginForm
	if _, err := form.Decode(r, &f); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	session, err := h.service.Login(r.Context(), &f)
	if err == nil {
		h.metrics.RecordLogin(metrics.ResultSuccess)
		middleware.SetSessionCookie(w, session, h.cookies)
		h.renderer.Flash(w, r, flash.LevelSuccess, "flash.logged_in")
		redirect(w, r, auth.SafeRedirect(f.Next))
		return
	}

	values := map[string]string{"email": f.Email, "next": f.Next}

	var verr *model.ValidationError
	var apiErr *model.APIError
	switch {
	case errors.As(err, &verr):
		h.metrics.RecordLogin(metrics.ResultInvalid)
		h.renderer.render(w, r, http.StatusOK, pageLogin, &pageData{Form: values, Errors: verr.Fields})
	case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidCredentials:
		h.metrics.RecordLogin(metrics.ResultFailure)
		h.renderLoginError(w, r, values, form.CodeInvalidCredentials)
	case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeEmailNotVerified:
		h.metrics.RecordLogin(metrics.ResultFailure)
		h.renderLoginError(w, r, values, form.CodeEmailNotVerified)
	default:
		h.renderer.serverError(w, r, err)
	}
}

func (h *AuthHandler) renderLoginError(w http.ResponseWriter, r *http.Request, values map[string]string, code string) {
	fieldErrs := model.FieldErrors{}
	fieldErrs.Add(model.NonFieldKey, code)
	h.renderer.render(w, r, http.StatusOK, pageLogin, &pageData{Form: values, Errors: fieldErrs})
}

// Logout はセッションを破棄してトップページへリダイレクトする。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := middleware.SessionIDFromContext(r.Context()); sessionID != "" {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	middleware.ClearSessionCookie(w, h.cookies)
	h.renderer.Flash(w, r, flash.LevelInfo, "flash.logged_out")
	redirect(w, r, "/")
}
