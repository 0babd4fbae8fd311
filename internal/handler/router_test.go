package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/cinelog/internal/auth"
	"github.com/hitoshi/cinelog/internal/metrics"
	"github.com/hitoshi/cinelog/internal/middleware"
	"github.com/hitoshi/cinelog/internal/model"
)

type mockSessionResolver struct {
	sessions map[string]*model.Session
}

func (m *mockSessionResolver) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return m.sessions[sessionID], nil
}

type mockMovieFinder struct {
	movies map[string]*model.Movie
}

func (m *mockMovieFinder) FindByID(ctx context.Context, id string) (*model.Movie, error) {
	return m.movies[id], nil
}

// newTestRouter はモックサービスとインメモリのセッション・映画を備えたルーターを構築する。
func newTestRouter(t *testing.T, movieService *mockMovieService, authService *mockAuthService) (http.Handler, *auth.CookieSigner, func()) {
	t.Helper()

	signer := auth.NewCookieSigner("test-secret")
	reg := prometheus.NewRegistry()
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		AuthRate:        rate.Limit(100),
		AuthBurst:       100,
		CleanupInterval: time.Hour,
	})

	resolver := &mockSessionResolver{sessions: map[string]*model.Session{
		"owner-session": {ID: "owner-session", UserID: "user-1", Username: "kurosawa", ExpiresAt: time.Now().Add(time.Hour)},
		"other-session": {ID: "other-session", UserID: "user-2", Username: "ozu", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	finder := &mockMovieFinder{movies: map[string]*model.Movie{
		"movie-1": testMovie(),
	}}

	router := NewRouter(&RouterDeps{
		CookieSigner:  signer,
		SessionLookup: resolver,
		MovieFinder:   finder,
		RateLimiter:   limiter,
		CookieSecure:  false,
		AuthService:   authService,
		MovieService:  movieService,
		AuthConfig:    AuthHandlerConfig{SessionMaxAge: 86400},
		Renderer:      testRenderer(t),
		Logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Metrics:       metrics.NewCollector(reg),
		Prometheus:    reg,
	})

	return router, signer, limiter.Stop
}

func defaultMovieService() *mockMovieService {
	return &mockMovieService{
		ListFunc: func(ctx context.Context) ([]*model.Movie, error) {
			return []*model.Movie{testMovie()}, nil
		},
		GetFunc: func(ctx context.Context, id string) (*model.Movie, error) {
			if id == "movie-1" {
				return testMovie(), nil
			}
			return nil, model.NewMovieNotFoundError()
		},
		DeleteFunc: func(ctx context.Context, id string) error {
			return nil
		},
	}
}

func withSessionCookie(req *http.Request, signer *auth.CookieSigner, sessionID string) *http.Request {
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: signer.Sign(sessionID)})
	return req
}

func withCSRF(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-csrf"})
	req.Header.Set("X-CSRF-Token", "test-csrf")
	return req
}

// TestRouter_Index_Public は一覧が未認証でも閲覧できることを検証する。
func TestRouter_Index_Public(t *testing.T) {
	router, _, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "七人の侍") {
		t.Error("movie list is not rendered")
	}
}

// TestRouter_AddForm_RequiresLogin は未認証の登録フォームアクセスが
// 通知付きでログインページへリダイレクトされることを検証する。
func TestRouter_AddForm_RequiresLogin(t *testing.T) {
	router, _, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/movies/add", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
}

// TestRouter_AddForm_Authenticated は認証済みユーザーに登録フォームが表示されることを検証する。
func TestRouter_AddForm_Authenticated(t *testing.T) {
	router, signer, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/movies/add", nil), signer, "owner-session")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `action="/movies/add"`) {
		t.Error("add form is not rendered")
	}
}

// TestRouter_TamperedSessionCookie_IsAnonymous は改ざんされたCookieが匿名として扱われることを検証する。
func TestRouter_TamperedSessionCookie_IsAnonymous(t *testing.T) {
	router, _, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/movies/add", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "owner-session.forged-signature"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
}

// TestRouter_Delete_Owner は所有者の削除がJSONのsuccessで応答されることを検証する。
func TestRouter_Delete_Owner(t *testing.T) {
	router, signer, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := httptest.NewRequest(http.MethodDelete, "/movies/movie-1", nil)
	req = withSessionCookie(req, signer, "owner-session")
	req = withCSRF(req)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
}

// TestRouter_Delete_NonOwner_Returns403JSON は非所有者の削除が403のJSONで拒否されることを検証する。
func TestRouter_Delete_NonOwner_Returns403JSON(t *testing.T) {
	router, signer, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := httptest.NewRequest(http.MethodDelete, "/movies/movie-1", nil)
	req = withSessionCookie(req, signer, "other-session")
	req = withCSRF(req)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

// TestRouter_Delete_Missing_Returns404JSON は存在しない映画の削除が404のJSONで応答されることを検証する。
func TestRouter_Delete_Missing_Returns404JSON(t *testing.T) {
	router, signer, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := httptest.NewRequest(http.MethodDelete, "/movies/missing", nil)
	req = withSessionCookie(req, signer, "owner-session")
	req = withCSRF(req)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

// TestRouter_EditForm_NonOwner_RedirectsToDetail は非所有者の編集アクセスが
// 詳細ページへリダイレクトされることを検証する。
func TestRouter_EditForm_NonOwner_RedirectsToDetail(t *testing.T) {
	router, signer, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/movies/movie-1/edit", nil), signer, "other-session")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/movies/movie-1" {
		t.Errorf("Location = %q, want %q", loc, "/movies/movie-1")
	}
}

// TestRouter_Post_WithoutCSRF_Forbidden はCSRFトークン無しのPOSTが拒否されることを検証する。
func TestRouter_Post_WithoutCSRF_Forbidden(t *testing.T) {
	router, signer, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := withSessionCookie(httptest.NewRequest(http.MethodPost, "/movies/add", nil), signer, "owner-session")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// TestRouter_SecurityHeaders は全レスポンスにセキュリティヘッダーが付与されることを検証する。
func TestRouter_SecurityHeaders(t *testing.T) {
	router, _, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want %q", got, "DENY")
	}
}

// TestRouter_Metrics_Exposed は/metricsがPrometheus形式で公開されることを検証する。
func TestRouter_Metrics_Exposed(t *testing.T) {
	router, _, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	// アプリケーションリクエストを1回処理してからスクレイプする
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "cinelog_http_status_total") {
		t.Error("metrics output does not contain cinelog_http_status_total")
	}
}

// TestRouter_Static_Served は静的ファイルが配信されることを検証する。
func TestRouter_Static_Served(t *testing.T) {
	router, _, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/static/app.css", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestRouter_Health_ReturnsOK は/healthが200で応答することを検証する。
func TestRouter_Health_ReturnsOK(t *testing.T) {
	router, _, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Error("health response does not contain ok status")
	}
}

// TestRouter_UnknownRoute_Renders404 は未定義ルートで404ページが表示されることを検証する。
func TestRouter_UnknownRoute_Renders404(t *testing.T) {
	router, _, stop := newTestRouter(t, defaultMovieService(), &mockAuthService{})
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/no/such/page", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if !strings.Contains(w.Body.String(), "404") {
		t.Error("404 page is not rendered")
	}
}
