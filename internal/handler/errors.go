package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/seminar/internal/middleware"
	"github.com/hitoshi/seminar/internal/model"
)

// handleServiceError はサービス層から返されたエラーをJSONエラーレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// writeJSON は値をJSONとして書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode json response", slog.String("error", err.Error()))
	}
}

// parsePK はURLパラメータの主キーを解釈する。正の整数でなければfalseを返す。
func parsePK(raw string) (int64, bool) {
	pk, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || pk <= 0 {
		return 0, false
	}
	return pk, true
}

func formatPK(pk int64) string {
	return strconv.FormatInt(pk, 10)
}

// isNotFound はエラーが参照先の不在を表すAPIErrorかどうかを返す。
func isNotFound(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && middleware.StatusForAPIError(apiErr) == http.StatusNotFound
}
