// Package locale は画面・メール・フラッシュメッセージの翻訳を提供する。
// 翻訳はtranslation/*.tomlを埋め込み、go-i18nで解決する。
package locale

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed translation/*.toml
var translationFS embed.FS

// CookieName は利用者が選択した言語を保持するCookie名。
const CookieName = "lang"

// paramSeparator はT関数に渡すパラメータの名前と値の区切り。
const paramSeparator = "=="

// Bundle は全言語の翻訳を保持する。
type Bundle struct {
	bundle *i18n.Bundle
}

// NewBundle は埋め込みの翻訳ファイルを読み込んだBundleを生成する。
// defaultLangは要求された言語に翻訳がない場合に使う言語。
func NewBundle(defaultLang string) (*Bundle, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	err = fs.WalkDir(translationFS, "translation", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := translationFS.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = bundle.ParseMessageFileBytes(data, path)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}

	return &Bundle{bundle: bundle}, nil
}

// Localizer は優先順に並べた言語で翻訳するLocalizerを返す。
func (b *Bundle) Localizer(langs ...string) *Localizer {
	return &Localizer{localizer: i18n.NewLocalizer(b.bundle, langs...)}
}

// Localizer は1リクエスト分の言語設定で翻訳する。
type Localizer struct {
	localizer *i18n.Localizer
}

// T はメッセージIDを翻訳する。
// paramsは "name==value" 形式でテンプレートデータを渡す。
// 翻訳が見つからない場合はメッセージIDをそのまま返す。
func (l *Localizer) T(id string, params ...string) string {
	if l == nil || l.localizer == nil {
		return id
	}
	msg, err := l.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: templateData(params),
	})
	if err != nil {
		slog.Warn("failed to localize message",
			slog.String("message_id", id),
			slog.String("error", err.Error()),
		)
		return id
	}
	return msg
}

func templateData(params []string) map[string]any {
	if len(params) == 0 {
		return nil
	}
	data := make(map[string]any, len(params))
	for _, p := range params {
		name, value, _ := strings.Cut(p, paramSeparator)
		data[name] = value
	}
	return data
}

type contextKey struct{}

// ContextWithLocalizer はLocalizerをコンテキストに設定する。
func ContextWithLocalizer(ctx context.Context, l *Localizer) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext はコンテキストからLocalizerを取得する。
// 設定されていない場合はメッセージIDをそのまま返すLocalizerを返す。
func FromContext(ctx context.Context) *Localizer {
	if l, ok := ctx.Value(contextKey{}).(*Localizer); ok {
		return l
	}
	return &Localizer{}
}

// Middleware はlang Cookie、Accept-Languageヘッダーの順に言語を決定し、
// Localizerをリクエストコンテキストに設定するミドルウェアを返す。
func (b *Bundle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var langs []string
		if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
			langs = append(langs, c.Value)
		}
		if accept := r.Header.Get("Accept-Language"); accept != "" {
			langs = append(langs, accept)
		}

		ctx := ContextWithLocalizer(r.Context(), b.Localizer(langs...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
