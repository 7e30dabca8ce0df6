package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/seminar/internal/flash"
	"github.com/hitoshi/seminar/internal/form"
	"github.com/hitoshi/seminar/internal/middleware"
	"github.com/hitoshi/seminar/internal/model"
	"github.com/hitoshi/seminar/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
// profile.Serviceが満たす。
type ProfileServiceInterface interface {
	Detail(ctx context.Context, profileID int64) (*model.ProfileDetail, error)
	InitialValues(ctx context.Context, userID string) (map[string]string, error)
	SubmittedValues(ctx context.Context, f *profile.UpdateForm) (map[string]string, error)
	Update(ctx context.Context, userID string, f *profile.UpdateForm) (int64, error)
	ProfileIDForUser(ctx context.Context, userID string) (int64, error)
}

// ProfileHandler はプロフィールの表示・更新のHTTPハンドラー。
type ProfileHandler struct {
	profiles  ProfileServiceInterface
	locations LocationServiceInterface
	validator *form.Validator
	renderer  *Renderer
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(profiles ProfileServiceInterface, locations LocationServiceInterface, validator *form.Validator, renderer *Renderer) *ProfileHandler {
	return &ProfileHandler{
		profiles:  profiles,
		locations: locations,
		validator: validator,
		renderer:  renderer,
	}
}

// EditPage はログイン中ユーザーのプロフィール編集フォームを表示する。
// GET /profile/edit
func (h *ProfileHandler) EditPage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		redirect(w, r, "/login")
		return
	}

	values, err := h.profiles.InitialValues(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.renderEdit(w, r, values, nil)
}

// Edit はプロフィール編集フォームを処理する。
// 送信された県・地区は使わず、学校から導出する。
// POST /profile/edit
func (h *ProfileHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		redirect(w, r, "/login")
		return
	}

	var f profile.UpdateForm
	decodeErrs, err := form.Decode(r, &f)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if decodeErrs != nil {
		h.renderSubmitted(w, r, &f, form.Merge(decodeErrs, h.validator.Struct(&f)))
		return
	}

	profileID, err := h.profiles.Update(r.Context(), userID, &f)
	var verr *model.ValidationError
	switch {
	case err == nil:
		h.renderer.Flash(w, r, flash.LevelSuccess, "flash.changes_saved")
		redirect(w, r, "/profile/"+formatPK(profileID))
	case errors.As(err, &verr):
		h.renderSubmitted(w, r, &f, verr.Fields)
	default:
		h.handleError(w, r, err)
	}
}

// Detail はプロフィール詳細を表示する。
// GET /profile/{pk}
func (h *ProfileHandler) Detail(w http.ResponseWriter, r *http.Request) {
	pk, ok := parsePK(chi.URLParam(r, "pk"))
	if !ok {
		h.renderer.NotFound(w, r)
		return
	}

	detail, err := h.profiles.Detail(r.Context(), pk)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageProfileDetail, &pageData{Data: detail})
}

func (h *ProfileHandler) renderSubmitted(w http.ResponseWriter, r *http.Request, f *profile.UpdateForm, fieldErrs model.FieldErrors) {
	values, err := h.profiles.SubmittedValues(r.Context(), f)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	h.renderEdit(w, r, values, fieldErrs)
}

func (h *ProfileHandler) renderEdit(w http.ResponseWriter, r *http.Request, values map[string]string, fieldErrs model.FieldErrors) {
	choices, err := loadChoices(r.Context(), h.locations, values)
	if err != nil {
		h.renderer.serverError(w, r, err)
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageProfileEdit, &pageData{
		Form:   values,
		Errors: fieldErrs,
		Data:   choices,
	})
}

// handleError は参照先の不在を404ページ、それ以外を500ページとして描画する。
func (h *ProfileHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if isNotFound(err) {
		h.renderer.NotFound(w, r)
		return
	}
	h.renderer.serverError(w, r, err)
}
