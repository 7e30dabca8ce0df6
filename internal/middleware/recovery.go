package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、500レスポンスを返すミドルウェアを生成する。
// /ajax 配下は統一JSONエラー、それ以外はプレーンテキストで応答する。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// ErrAbortHandler はクライアント切断の合図なのでそのまま再送出する
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_ip", RemoteIP(r)),
					slog.String("stack", string(debug.Stack())),
				)
				if strings.HasPrefix(r.URL.Path, "/ajax/") {
					WriteInternalServerError(w)
					return
				}
				http.Error(w, "Internal server error. Please try again later.", http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
