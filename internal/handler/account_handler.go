package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/seminar/internal/auth"
	"github.com/hitoshi/seminar/internal/flash"
	"github.com/hitoshi/seminar/internal/form"
	"github.com/hitoshi/seminar/internal/locale"
	"github.com/hitoshi/seminar/internal/middleware"
	"github.com/hitoshi/seminar/internal/model"
	"github.com/hitoshi/seminar/internal/user"
)

// UserServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
// user.Serviceが満たす。
type UserServiceInterface interface {
	Register(ctx context.Context, l *locale.Localizer, f *user.RegistrationForm) (*model.User, error)
	Verify(ctx context.Context, uidb64, token string) bool
	RequestPasswordReset(ctx context.Context, l *locale.Localizer, f *user.PasswordResetRequestForm) error
	CheckPasswordResetLink(ctx context.Context, uidb64, token string) bool
	ResetPassword(ctx context.Context, uidb64, token string, f *user.SetPasswordForm) error
}

// AccountHandler は登録、メールアドレス確認、パスワード再設定のHTTPハンドラー。
type AccountHandler struct {
	users     UserServiceInterface
	locations LocationServiceInterface
	validator *form.Validator
	renderer  *Renderer
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(users UserServiceInterface, locations LocationServiceInterface, validator *form.Validator, renderer *Renderer) *AccountHandler {
	return &AccountHandler{
		users:     users,
		locations: locations,
		validator: validator,
		renderer:  renderer,
	}
}

// RegisterPage は登録フォームを表示する。
// GET /register
func (h *AccountHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if isLoggedIn(r) {
		redirect(w, r, auth.DefaultRedirect)
		return
	}
	h.renderRegister(w, r, map[string]string{}, nil, nil)
}

// Register は登録フォームを処理する。
// 成功時は確認メールを送信して/loginへ、入力不備は同じページを再表示する。
// POST /register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	if isLoggedIn(r) {
		redirect(w, r, auth.DefaultRedirect)
		return
	}

	var f user.RegistrationForm
	decodeErrs, err := form.Decode(r, &f)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	values := form.Values(&f)
	delete(values, "password1")
	delete(values, "password2")

	if decodeErrs != nil {
		h.renderRegister(w, r, values, form.Merge(decodeErrs, h.validator.Struct(&f)), nil)
		return
	}

	_, err = h.users.Register(r.Context(), locale.FromContext(r.Context()), &f)
	if err == nil {
		h.renderer.Flash(w, r, flash.LevelSuccess, "flash.verification_sent")
		redirect(w, r, "/login")
		return
	}

	var verr *model.ValidationError
	var apiErr *model.APIError
	switch {
	case errors.As(err, &verr):
		var flashes []flash.Message
		if verr.Fields.HasCode("email", form.CodeUnique) {
			flashes = append(flashes, flash.New(flash.LevelError, "flash.email_exists"))
		}
		h.renderRegister(w, r, values, verr.Fields, flashes)
	case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeEmailExists:
		fieldErrs := model.FieldErrors{}
		fieldErrs.Add("email", form.CodeUnique)
		h.renderRegister(w, r, values, fieldErrs, []flash.Message{flash.New(flash.LevelError, "flash.email_exists")})
	default:
		h.renderer.serverError(w, r, err)
	}
}

func (h *AccountHandler) renderRegister(w http.ResponseWriter, r *http.Request, values map[string]string, fieldErrs model.FieldErrors, flashes []flash.Message) {
	if err := withPlacement(r.Context(), h.locations, values); err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	choices, err := loadChoices(r.Context(), h.locations, values)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageRegister, &pageData{
		Form:    values,
		Errors:  fieldErrs,
		Flashes: flashes,
		Data:    choices,
	})
}

// Verify は確認リンクを処理し、結果をフラッシュメッセージで伝えてトップページへ戻す。
// GET /verify/{uidb64}/{token}
func (h *AccountHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.users.Verify(r.Context(), chi.URLParam(r, "uidb64"), chi.URLParam(r, "token")) {
		h.renderer.Flash(w, r, flash.LevelSuccess, "flash.email_verified")
	} else {
		h.renderer.Flash(w, r, flash.LevelError, "flash.email_verification_failed")
	}
	redirect(w, r, "/")
}

// PasswordResetPage はパスワード再設定の申請フォームを表示する。
// GET /password-reset
func (h *AccountHandler) PasswordResetPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.render(w, r, http.StatusOK, pagePasswordReset, nil)
}

// PasswordReset は再設定の申請を処理する。アカウントの有無にかかわらず同じ応答を返す。
// POST /password-reset
func (h *AccountHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var f user.PasswordResetRequestForm
	if _, err := form.Decode(r, &f); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.users.RequestPasswordReset(r.Context(), locale.FromContext(r.Context()), &f)
	var verr *model.ValidationError
	switch {
	case err == nil:
		h.renderer.Flash(w, r, flash.LevelInfo, "flash.password_reset_sent")
		redirect(w, r, "/login")
	case errors.As(err, &verr):
		h.renderer.render(w, r, http.StatusOK, pagePasswordReset, &pageData{
			Form:   form.Values(&f),
			Errors: verr.Fields,
		})
	default:
		h.renderer.serverError(w, r, err)
	}
}

// PasswordResetConfirmPage は再設定リンクを検証し、新しいパスワードの入力フォームを表示する。
// GET /password-reset/{uidb64}/{token}
func (h *AccountHandler) PasswordResetConfirmPage(w http.ResponseWriter, r *http.Request) {
	if !h.users.CheckPasswordResetLink(r.Context(), chi.URLParam(r, "uidb64"), chi.URLParam(r, "token")) {
		h.renderer.Flash(w, r, flash.LevelError, "flash.password_reset_invalid")
		redirect(w, r, "/password-reset")
		return
	}
	h.renderer.render(w, r, http.StatusOK, pagePasswordResetConfirm, nil)
}

// PasswordResetConfirm は新しいパスワードを設定する。
// POST /password-reset/{uidb64}/{token}
func (h *AccountHandler) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var f user.SetPasswordForm
	if _, err := form.Decode(r, &f); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.users.ResetPassword(r.Context(), chi.URLParam(r, "uidb64"), chi.URLParam(r, "token"), &f)
	var verr *model.ValidationError
	var apiErr *model.APIError
	switch {
	case err == nil:
		h.renderer.Flash(w, r, flash.LevelSuccess, "flash.password_reset_done")
		redirect(w, r, "/login")
	case errors.As(err, &verr):
		h.renderer.render(w, r, http.StatusOK, pagePasswordResetConfirm, &pageData{Errors: verr.Fields})
	case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidToken:
		h.renderer.Flash(w, r, flash.LevelError, "flash.password_reset_invalid")
		redirect(w, r, "/password-reset")
	default:
		h.renderer.serverError(w, r, err)
	}
}

// isLoggedIn はリクエストが有効なセッションを持つかどうかを返す。
func isLoggedIn(r *http.Request) bool {
	_, err := middleware.UserIDFromContext(r.Context())
	return err == nil
}
