package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/seminar/internal/form"
	"github.com/hitoshi/seminar/internal/locale"
	"github.com/hitoshi/seminar/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	TrustProxy        bool // trueならX-Real-IP/X-Forwarded-ForからクライアントIPを復元する
	RateLimiter       *middleware.RateLimiter
	HTTPMetrics       middleware.HTTPRequestRecorder
	MetricsHandler    http.Handler
	Locales           *locale.Bundle
	CSRF              middleware.CSRFConfig
	Cookies           middleware.CookieConfig

	// 表示
	Renderer  *Renderer
	Validator *form.Validator

	// サービス
	AuthService     AuthServiceInterface
	LoginRecorder   LoginRecorder
	UserService     UserServiceInterface
	ProfileService  ProfileServiceInterface
	LocationService LocationServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → Metrics → Session → Locale
//	  ├ /ajax/*: CORS
//	  └ HTML: CSRF → RateLimit（登録・ログイン・パスワード再設定のPOSTのみ）
//	          → RequireLogin（/profile/editのみ）
//
// TrustProxyが有効な場合はRecoveryの前にchiのRealIPを適用する。
//
// /health と /metrics はセッション・CSRFの対象外とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{HSTS: deps.Cookies.Secure}))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}

	// --- 監視用ルート ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	accountHandler := NewAccountHandler(deps.UserService, deps.LocationService, deps.Validator, deps.Renderer)
	authHandler := NewAuthHandler(deps.AuthService, deps.Renderer, deps.Cookies, deps.LoginRecorder)
	profileHandler := NewProfileHandler(deps.ProfileService, deps.LocationService, deps.Validator, deps.Renderer)
	locationHandler := NewLocationHandler(deps.LocationService)
	homeHandler := NewHomeHandler(deps.AuthService, deps.ProfileService, deps.Renderer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.Locales.Middleware)

		// --- 連動選択用JSON ---
		r.Route("/ajax", func(r chi.Router) {
			r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
			r.Get("/counties/{pk}/districts", locationHandler.DistrictsByCounty)
			r.Get("/counties/{pk}/schools", locationHandler.SchoolsByCounty)
			r.Get("/districts/{pk}/schools", locationHandler.SchoolsByDistrict)
		})

		// --- HTMLページ ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
			limit := deps.RateLimiter.FormMiddleware()

			r.Get("/", homeHandler.Home)

			r.Get("/register", accountHandler.RegisterPage)
			r.With(limit).Post("/register", accountHandler.Register)
			r.Get("/verify/{uidb64}/{token}", accountHandler.Verify)

			r.Get("/login", authHandler.LoginPage)
			r.With(limit).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)

			r.Get("/password-reset", accountHandler.PasswordResetPage)
			r.With(limit).Post("/password-reset", accountHandler.PasswordReset)
			r.Get("/password-reset/{uidb64}/{token}", accountHandler.PasswordResetConfirmPage)
			r.With(limit).Post("/password-reset/{uidb64}/{token}", accountHandler.PasswordResetConfirm)

			r.Route("/profile", func(r chi.Router) {
				r.With(middleware.NewRequireLoginMiddleware("/login")).Get("/edit", profileHandler.EditPage)
				r.With(middleware.NewRequireLoginMiddleware("/login")).Post("/edit", profileHandler.Edit)
				r.Get("/{pk}", profileHandler.Detail)
			})
		})
	})

	// 404ページもセッション・言語・CSRFトークンを参照して描画する
	r.NotFound(chi.Chain(
		middleware.NewSessionMiddleware(deps.SessionFinder),
		deps.Locales.Middleware,
		middleware.NewCSRFMiddleware(deps.CSRF),
	).HandlerFunc(deps.Renderer.NotFound).ServeHTTP)

	return r
}
