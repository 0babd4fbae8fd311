package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/cinelog/internal/auth"
	"github.com/hitoshi/cinelog/internal/middleware"
	"github.com/hitoshi/cinelog/internal/model"
	"github.com/hitoshi/cinelog/internal/view"
)

// --- モック ---

type mockAuthService struct {
	RegisterFunc func(ctx context.Context, input auth.RegisterInput) (*model.User, error)
	LoginFunc    func(ctx context.Context, email, password string) (*model.Session, error)
	LogoutFunc   func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) Register(ctx context.Context, input auth.RegisterInput) (*model.User, error) {
	return m.RegisterFunc(ctx, input)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	return m.LoginFunc(ctx, email, password)
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	return m.LogoutFunc(ctx, sessionID)
}

type mockMetrics struct {
	loginSuccess  int
	loginFail     int
	registrations int
	created       int
	updated       int
	deleted       int
}

func (m *mockMetrics) RecordLoginSuccess() { m.loginSuccess++ }
func (m *mockMetrics) RecordLoginFailure() { m.loginFail++ }
func (m *mockMetrics) RecordRegistration() { m.registrations++ }
func (m *mockMetrics) RecordMovieCreated() { m.created++ }
func (m *mockMetrics) RecordMovieUpdated() { m.updated++ }
func (m *mockMetrics) RecordMovieDeleted() { m.deleted++ }

func testRenderer(t *testing.T) *view.Renderer {
	t.Helper()

	rd, err := view.NewRenderer()
	if err != nil {
		t.Fatalf("view.NewRenderer() error: %v", err)
	}
	return rd
}

func testSession() *model.Session {
	return &model.Session{
		ID:        "session-1",
		UserID:    "user-1",
		Username:  "kurosawa",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func newAuthHandler(t *testing.T, service *mockAuthService, metrics *mockMetrics) *AuthHandler {
	t.Helper()

	return NewAuthHandler(
		service,
		auth.NewCookieSigner("test-secret"),
		testRenderer(t),
		metrics,
		AuthHandlerConfig{SessionMaxAge: 86400, CookieSecure: false},
	)
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// --- 登録 ---

// TestShowRegister_RendersForm は登録フォームが表示されることを検証する。
func TestShowRegister_RendersForm(t *testing.T) {
	h := newAuthHandler(t, &mockAuthService{}, &mockMetrics{})

	req := httptest.NewRequest(http.MethodGet, "/register", nil)
	w := httptest.NewRecorder()
	h.ShowRegister(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `action="/register"`) {
		t.Error("register form is not rendered")
	}
}

// TestShowRegister_LoggedInRedirects はログイン済みユーザーが一覧へリダイレクトされることを検証する。
func TestShowRegister_LoggedInRedirects(t *testing.T) {
	h := newAuthHandler(t, &mockAuthService{}, &mockMetrics{})

	req := httptest.NewRequest(http.MethodGet, "/register", nil)
	req = req.WithContext(middleware.ContextWithSession(req.Context(), testSession()))
	w := httptest.NewRecorder()
	h.ShowRegister(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want %q", loc, "/")
	}
}

// TestRegister_Success は登録成功時にログインページへリダイレクトされることを検証する。
func TestRegister_Success(t *testing.T) {
	metrics := &mockMetrics{}
	service := &mockAuthService{
		RegisterFunc: func(ctx context.Context, input auth.RegisterInput) (*model.User, error) {
			if input.Username != "kurosawa" || input.Email != "k@example.com" {
				t.Errorf("unexpected input: %+v", input)
			}
			return &model.User{ID: "user-1", Username: input.Username}, nil
		},
	}
	h := newAuthHandler(t, service, metrics)

	form := url.Values{
		"username":         {"kurosawa"},
		"email":            {"k@example.com"},
		"password":         {"secret123"},
		"password_confirm": {"secret123"},
	}
	w := httptest.NewRecorder()
	h.Register(w, postForm("/register", form))

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
	if metrics.registrations != 1 {
		t.Errorf("registrations = %d, want 1", metrics.registrations)
	}
}

// TestRegister_ValidationError はバリデーション失敗時に入力値を保持して再表示されることを検証する。
func TestRegister_ValidationError(t *testing.T) {
	service := &mockAuthService{
		RegisterFunc: func(ctx context.Context, input auth.RegisterInput) (*model.User, error) {
			return nil, model.NewValidationError(map[string]string{
				"password": "パスワードは6文字以上で入力してください。",
			})
		},
	}
	h := newAuthHandler(t, service, &mockMetrics{})

	form := url.Values{
		"username":         {"kurosawa"},
		"email":            {"k@example.com"},
		"password":         {"abc"},
		"password_confirm": {"abc"},
	}
	w := httptest.NewRecorder()
	h.Register(w, postForm("/register", form))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	if !strings.Contains(body, "パスワードは6文字以上で入力してください。") {
		t.Error("field error is not rendered")
	}
	// 入力済みの値は保持される
	if !strings.Contains(body, `value="kurosawa"`) || !strings.Contains(body, `value="k@example.com"`) {
		t.Error("entered values are not echoed back")
	}
}

// TestRegister_Conflict は重複登録時に通知付きで再表示されることを検証する。
func TestRegister_Conflict(t *testing.T) {
	service := &mockAuthService{
		RegisterFunc: func(ctx context.Context, input auth.RegisterInput) (*model.User, error) {
			return nil, model.NewConflictError()
		},
	}
	h := newAuthHandler(t, service, &mockMetrics{})

	form := url.Values{
		"username":         {"kurosawa"},
		"email":            {"k@example.com"},
		"password":         {"secret123"},
		"password_confirm": {"secret123"},
	}
	w := httptest.NewRecorder()
	h.Register(w, postForm("/register", form))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), model.MsgDuplicateUser) {
		t.Error("conflict message is not rendered")
	}
}

// --- ログイン ---

// TestLogin_Success_SetsSignedCookie はログイン成功時に署名付きCookieが設定されることを検証する。
func TestLogin_Success_SetsSignedCookie(t *testing.T) {
	metrics := &mockMetrics{}
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, email, password string) (*model.Session, error) {
			return testSession(), nil
		},
	}
	h := newAuthHandler(t, service, metrics)

	form := url.Values{"email": {"k@example.com"}, "password": {"secret123"}}
	w := httptest.NewRecorder()
	h.Login(w, postForm("/login", form))

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want %q", loc, "/")
	}

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("session cookie is not set")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}

	// Cookie値は署名付きで、検証するとセッションIDが取り出せる
	signer := auth.NewCookieSigner("test-secret")
	sessionID, ok := signer.Verify(sessionCookie.Value)
	if !ok || sessionID != "session-1" {
		t.Errorf("Verify(cookie) = (%q, %v), want (%q, true)", sessionID, ok, "session-1")
	}

	if metrics.loginSuccess != 1 {
		t.Errorf("loginSuccess = %d, want 1", metrics.loginSuccess)
	}
}

// TestLogin_InvalidCredentials は認証失敗時にメールアドレスを保持して再表示されることを検証する。
func TestLogin_InvalidCredentials(t *testing.T) {
	metrics := &mockMetrics{}
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, email, password string) (*model.Session, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := newAuthHandler(t, service, metrics)

	form := url.Values{"email": {"k@example.com"}, "password": {"wrong"}}
	w := httptest.NewRecorder()
	h.Login(w, postForm("/login", form))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	if !strings.Contains(body, model.MsgInvalidCredentials) {
		t.Error("invalid credentials message is not rendered")
	}
	if !strings.Contains(body, `value="k@example.com"`) {
		t.Error("email is not echoed back")
	}
	if metrics.loginFail != 1 {
		t.Errorf("loginFail = %d, want 1", metrics.loginFail)
	}
}

// --- ログアウト ---

// TestLogout_DeletesSessionAndExpiresCookie はログアウトでセッション削除とCookie失効が行われることを検証する。
func TestLogout_DeletesSessionAndExpiresCookie(t *testing.T) {
	var deletedID string
	service := &mockAuthService{
		LogoutFunc: func(ctx context.Context, sessionID string) error {
			deletedID = sessionID
			return nil
		},
	}
	h := newAuthHandler(t, service, &mockMetrics{})

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req = req.WithContext(middleware.ContextWithSession(req.Context(), testSession()))
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
	if deletedID != "session-1" {
		t.Errorf("deleted session = %q, want %q", deletedID, "session-1")
	}

	var expired bool
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Error("session cookie is not expired")
	}
}

// TestLogout_WithoutSession_StillRedirects はセッション無しでもリダイレクトされることを検証する。
func TestLogout_WithoutSession_StillRedirects(t *testing.T) {
	h := newAuthHandler(t, &mockAuthService{}, &mockMetrics{})

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
}
