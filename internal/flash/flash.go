// Package flash はリダイレクトをまたいで表示する一度きりのメッセージを提供する。
// メッセージは署名・暗号化されたCookieに保持し、次のリクエストで読み出して削除する。
package flash

import (
	"crypto/sha256"
	"log/slog"
	"net/http"

	"github.com/gorilla/securecookie"
)

// CookieName はフラッシュメッセージを保持するCookieの名前。
const CookieName = "flash"

// maxMessages は1つのCookieに保持するメッセージ数の上限。
const maxMessages = 8

// メッセージの表示レベル。テンプレートのCSSクラスに対応する。
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Message はフラッシュメッセージ。IDは翻訳キー、Paramsは翻訳パラメータ。
type Message struct {
	Level  string   `json:"l"`
	ID     string   `json:"id"`
	Params []string `json:"p,omitempty"`
}

// New はメッセージを生成する。
func New(level, id string, params ...string) Message {
	return Message{Level: level, ID: id, Params: params}
}

// Config はStoreの設定。
type Config struct {
	Secret       string
	CookieSecure bool
	CookieDomain string
}

// Store はフラッシュメッセージのCookieを読み書きする。
type Store struct {
	codec  *securecookie.SecureCookie
	secure bool
	domain string
}

// NewStore はSecretから署名鍵と暗号鍵を導出してStoreを生成する。
func NewStore(config Config) *Store {
	hashKey := sha256.Sum256([]byte("seminar.flash.hash|" + config.Secret))
	blockKey := sha256.Sum256([]byte("seminar.flash.block|" + config.Secret))

	codec := securecookie.New(hashKey[:], blockKey[:])
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(600)

	return &Store{
		codec:  codec,
		secure: config.CookieSecure,
		domain: config.CookieDomain,
	}
}

// Add はリクエストに残っている未表示のメッセージに追記してCookieに書き込む。
// Set-Cookieは後勝ちのため、1レスポンスにつき1回だけ呼び出す。
func (s *Store) Add(w http.ResponseWriter, r *http.Request, msgs ...Message) {
	if len(msgs) == 0 {
		return
	}

	all := append(s.read(r), msgs...)
	if len(all) > maxMessages {
		all = all[len(all)-maxMessages:]
	}

	encoded, err := s.codec.Encode(CookieName, all)
	if err != nil {
		slog.Error("failed to encode flash messages", slog.String("error", err.Error()))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     "/",
		Domain:   s.domain,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Pop はリクエストのCookieからメッセージを読み出し、Cookieを削除する。
// Cookieがない、または改ざん・期限切れの場合は空を返す。
func (s *Store) Pop(w http.ResponseWriter, r *http.Request) []Message {
	msgs := s.read(r)
	if _, err := r.Cookie(CookieName); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    "",
			Path:     "/",
			Domain:   s.domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return msgs
}

func (s *Store) read(r *http.Request) []Message {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	var msgs []Message
	if err := s.codec.Decode(CookieName, cookie.Value, &msgs); err != nil {
		slog.Debug("discarding undecodable flash cookie", slog.String("error", err.Error()))
		return nil
	}
	return msgs
}
