package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/seminar/internal/flash"
	"github.com/hitoshi/seminar/internal/locale"
	"github.com/hitoshi/seminar/internal/middleware"
	"github.com/hitoshi/seminar/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページテンプレート名（templates/<name>.html）。
const (
	pageHome                 = "home"
	pageRegister             = "register"
	pageLogin                = "login"
	pageProfileEdit          = "profile_edit"
	pageProfileDetail        = "profile_detail"
	pagePasswordReset        = "password_reset"
	pagePasswordResetConfirm = "password_reset_confirm"
	pageNotFound             = "not_found"
	pageError                = "error"
)

var pageNames = []string{
	pageHome,
	pageRegister,
	pageLogin,
	pageProfileEdit,
	pageProfileDetail,
	pagePasswordReset,
	pagePasswordResetConfirm,
	pageNotFound,
	pageError,
}

// pageData はページテンプレートに渡す値。
type pageData struct {
	L         *locale.Localizer
	Title     string
	CSRFToken string
	LoggedIn  bool
	Flashes   []flash.Message
	Form      map[string]string
	Errors    model.FieldErrors
	Data      any
}

// Renderer は埋め込みテンプレートからHTMLページを描画する。
// 描画時にフラッシュメッセージを取り出して表示する。
type Renderer struct {
	pages   map[string]*template.Template
	flashes *flash.Store
}

// NewRenderer は全ページのテンプレートを読み込んだRendererを生成する。
func NewRenderer(flashes *flash.Store) (*Renderer, error) {
	funcs := template.FuncMap{
		"errorsFor": errorsFor,
		"flashText": flashText,
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/partials.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Renderer{pages: pages, flashes: flashes}, nil
}

// Flash はフラッシュメッセージを次のレスポンスに持ち越す。
func (rd *Renderer) Flash(w http.ResponseWriter, r *http.Request, level, id string) {
	rd.flashes.Add(w, r, flash.New(level, id))
}

// render はページを描画する。Localizer、CSRFトークン、ログイン状態はリクエストから補完する。
// data.Flashesは持ち越されたフラッシュメッセージの後に表示する。
func (rd *Renderer) render(w http.ResponseWriter, r *http.Request, status int, page string, data *pageData) {
	tmpl, ok := rd.pages[page]
	if !ok {
		slog.Error("unknown page template", slog.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = &pageData{}
	}
	data.L = locale.FromContext(r.Context())
	data.CSRFToken = middleware.CSRFTokenFromContext(r.Context())
	if _, err := middleware.UserIDFromContext(r.Context()); err == nil {
		data.LoggedIn = true
	}
	if data.Title == "" {
		data.Title = data.L.T("page." + page + ".title")
	}
	if data.Form == nil {
		data.Form = map[string]string{}
	}
	// 前のリクエストから持ち越したメッセージを先に表示する
	data.Flashes = append(rd.flashes.Pop(w, r), data.Flashes...)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		slog.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// NotFound は404ページを描画する。
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.render(w, r, http.StatusNotFound, pageNotFound, nil)
}

// serverError はエラーをログに記録し、500ページを描画する。
func (rd *Renderer) serverError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal server error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	rd.render(w, r, http.StatusInternalServerError, pageError, nil)
}

// redirect は303でリダイレクトする。
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func errorsFor(errs model.FieldErrors, field string) []string {
	if errs == nil {
		return nil
	}
	return errs[field]
}

func flashText(l *locale.Localizer, m flash.Message) string {
	return l.T(m.ID, m.Params...)
}
