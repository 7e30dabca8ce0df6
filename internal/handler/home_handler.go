package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/seminar/internal/middleware"
)

// homeData はトップページの表示内容。匿名ユーザーの場合はゼロ値。
type homeData struct {
	Name      string
	ProfileID int64
}

// HomeHandler はトップページのHTTPハンドラー。
type HomeHandler struct {
	auth     AuthServiceInterface
	profiles ProfileServiceInterface
	renderer *Renderer
}

// NewHomeHandler はHomeHandlerを生成する。
func NewHomeHandler(auth AuthServiceInterface, profiles ProfileServiceInterface, renderer *Renderer) *HomeHandler {
	return &HomeHandler{auth: auth, profiles: profiles, renderer: renderer}
}

// Home はトップページを表示する。フラッシュメッセージの表示先を兼ねる。
// GET /
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	data := homeData{}

	if sessionID := middleware.SessionIDFromContext(r.Context()); sessionID != "" {
		user, err := h.auth.GetCurrentUser(r.Context(), sessionID)
		if err != nil {
			slog.Debug("home: no current user", slog.String("error", err.Error()))
		} else {
			data.Name = user.FirstName
			if data.Name == "" {
				data.Name = user.Email
			}
			if id, err := h.profiles.ProfileIDForUser(r.Context(), user.ID); err == nil {
				data.ProfileID = id
			}
		}
	}

	h.renderer.render(w, r, http.StatusOK, pageHome, &pageData{Data: data})
}

// HealthChecker はデータベースの疎通確認インターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// healthTimeout はヘルスチェック時のDB疎通確認の上限時間。
const healthTimeout = 2 * time.Second

// NewHealthHandler はヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := checker.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
