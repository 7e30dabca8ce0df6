package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"

	"github.com/hitoshi/seminar/internal/locale"
	"github.com/hitoshi/seminar/internal/model"
)

//go:embed templates/*.txt templates/*.html
var templateFS embed.FS

// メール種別ごとのテンプレート名（拡張子を除く）。
const (
	kindVerification  = "email_verification"
	kindPasswordReset = "password_reset"
)

// Composer は翻訳済みのメール本文を組み立てる。
type Composer struct {
	baseURL string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// templateData はメールテンプレートに渡す値。
type templateData struct {
	L    *locale.Localizer
	Name string
	Link string
}

// NewComposer は埋め込みテンプレートを読み込んだComposerを生成する。
// baseURLはリンクの組み立てに使用する（末尾のスラッシュなし）。
func NewComposer(baseURL string) (*Composer, error) {
	text, err := texttemplate.New("").ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text mail templates: %w", err)
	}
	html, err := htmltemplate.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse html mail templates: %w", err)
	}
	return &Composer{baseURL: baseURL, text: text, html: html}, nil
}

// VerificationLink はメールアドレス確認用のURLを返す。
func (c *Composer) VerificationLink(uidb64, token string) string {
	return c.baseURL + "/verify/" + url.PathEscape(uidb64) + "/" + url.PathEscape(token)
}

// PasswordResetLink はパスワード再設定用のURLを返す。
func (c *Composer) PasswordResetLink(uidb64, token string) string {
	return c.baseURL + "/password-reset/" + url.PathEscape(uidb64) + "/" + url.PathEscape(token)
}

// Verification は確認メールを組み立てる。
func (c *Composer) Verification(l *locale.Localizer, user *model.User, uidb64, token string) (*Message, error) {
	return c.compose(kindVerification, l, user, c.VerificationLink(uidb64, token))
}

// PasswordReset はパスワード再設定メールを組み立てる。
func (c *Composer) PasswordReset(l *locale.Localizer, user *model.User, uidb64, token string) (*Message, error) {
	return c.compose(kindPasswordReset, l, user, c.PasswordResetLink(uidb64, token))
}

func (c *Composer) compose(kind string, l *locale.Localizer, user *model.User, link string) (*Message, error) {
	data := templateData{L: l, Name: displayName(user), Link: link}

	var text bytes.Buffer
	if err := c.text.ExecuteTemplate(&text, kind+".txt", data); err != nil {
		return nil, fmt.Errorf("failed to render %s text body: %w", kind, err)
	}
	var html bytes.Buffer
	if err := c.html.ExecuteTemplate(&html, kind+".html", data); err != nil {
		return nil, fmt.Errorf("failed to render %s html body: %w", kind, err)
	}

	subjectID := "email.verification.subject"
	if kind == kindPasswordReset {
		subjectID = "email.password_reset.subject"
	}

	return &Message{
		To:       user.Email,
		Subject:  l.T(subjectID),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}

func displayName(user *model.User) string {
	if user.FirstName != "" {
		return user.FirstName
	}
	return user.Email
}
