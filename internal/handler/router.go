package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/cinelog/internal/metrics"
	"github.com/hitoshi/cinelog/internal/middleware"
	"github.com/hitoshi/cinelog/internal/view"
)

// HealthChecker はヘルスチェックでのDB死活確認に必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CookieSigner  CookieSignerInterface
	SessionLookup middleware.SessionResolver
	MovieFinder   middleware.MovieFinder
	RateLimiter   *middleware.RateLimiter
	CookieSecure  bool

	// サービス
	AuthService  AuthServiceInterface
	MovieService MovieServiceInterface
	AuthConfig   AuthHandlerConfig

	// レンダリング
	Renderer *view.Renderer

	// 監視
	HealthChecker HealthChecker
	Logger        *slog.Logger
	Metrics       *metrics.Collector
	Prometheus    prometheus.Gatherer
}

// NewRouter は全ルートとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → SessionLoader → CSRF
//
// 認証が必要なルートはRequireLoginを、所有権が必要なルートはさらにMovieOwnerを重ねる。
// /metricsと/static/はアプリケーションのミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	authHandler := NewAuthHandler(deps.AuthService, deps.CookieSigner, deps.Renderer, deps.Metrics, deps.AuthConfig)
	movieHandler := NewMovieHandler(deps.MovieService, deps.Renderer, deps.Metrics)

	// --- ミドルウェアチェーンの外のルート ---

	// Dockerヘルスチェック用エンドポイント
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheusスクレイプ
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Prometheus))

	// 静的ファイル
	r.Handle("/static/*", http.StripPrefix("/static/", view.StaticHandler()))

	// --- アプリケーションルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRecoveryMiddleware(deps.Renderer.ErrorPage))
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
		r.Use(middleware.NewSessionLoader(deps.CookieSigner, deps.SessionLookup))
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{CookieSecure: deps.CookieSecure}))

		// 公開ルート
		r.Get("/", movieHandler.Index)
		r.Get("/movies/{id}", movieHandler.Show)

		// 認証ルート（ログイン・登録POSTにはIPごとのレート制限を追加）
		r.Get("/register", authHandler.ShowRegister)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", authHandler.Register)
		r.Get("/login", authHandler.ShowLogin)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
		r.Get("/logout", authHandler.Logout)

		// 要ログインのルート
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequireLogin())

			r.Get("/movies/add", movieHandler.ShowAddForm)
			r.Post("/movies/add", movieHandler.Create)

			// 要所有権のルート
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewMovieOwner(deps.MovieFinder))

				r.Get("/movies/{id}/edit", movieHandler.ShowEditForm)
				r.Post("/movies/{id}/edit", movieHandler.Update)
				r.Delete("/movies/{id}", movieHandler.Delete)
			})
		})

		// 未定義ルートは404ページを表示する
		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			deps.Renderer.ErrorPage(w, req, http.StatusNotFound)
		})
	})

	return r
}
