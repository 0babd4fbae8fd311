// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/cinelog/internal/auth"
	"github.com/hitoshi/cinelog/internal/middleware"
	"github.com/hitoshi/cinelog/internal/model"
	"github.com/hitoshi/cinelog/internal/view"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は新規ユーザーを作成する。
	Register(ctx context.Context, input auth.RegisterInput) (*model.User, error)
	// Login は資格情報を検証し、セッションを発行する。
	Login(ctx context.Context, email, password string) (*model.Session, error)
	// Logout はセッションを破棄する。
	Logout(ctx context.Context, sessionID string) error
}

// CookieSignerInterface はセッションCookie値の署名に必要なインターフェース。
type CookieSignerInterface interface {
	Sign(sessionID string) string
	Verify(value string) (string, bool)
}

// AuthMetrics は認証ハンドラーが記録するメトリクスのサブセット。
type AuthMetrics interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordRegistration()
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	SessionMaxAge int  // Cookieの有効期間（秒）
	CookieSecure  bool // BASE_URLがhttpsの場合にtrue
}

// AuthHandler はユーザー登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	signer   CookieSignerInterface
	renderer *view.Renderer
	metrics  AuthMetrics
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	service AuthServiceInterface,
	signer CookieSignerInterface,
	renderer *view.Renderer,
	metrics AuthMetrics,
	config AuthHandlerConfig,
) *AuthHandler {
	return &AuthHandler{
		service:  service,
		signer:   signer,
		renderer: renderer,
		metrics:  metrics,
		config:   config,
	}
}

// ShowRegister はユーザー登録フォームを表示する。
// GET /register
// ログイン済みの場合は一覧へリダイレクトする。
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.renderer.Render(w, http.StatusOK, "register", view.PageData{
		Title:     "ユーザー登録",
		Flashes:   middleware.PopFlashes(w, r),
		CSRFToken: middleware.CSRFTokenFromRequest(r),
		Data:      view.RegisterFormData{},
	})
}

// Register はユーザー登録を処理する。
// POST /register
// バリデーション失敗時は入力値とフィールドエラー付きでフォームを再表示する。
// 成功時はログインページへリダイレクトする。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	input := auth.RegisterInput{
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("password_confirm"),
	}

	_, err := h.service.Register(r.Context(), input)
	if err != nil {
		h.handleRegisterError(w, r, input, err)
		return
	}

	h.metrics.RecordRegistration()
	middleware.SetFlash(w, middleware.FlashSuccess, "ユーザー登録が完了しました。ログインしてください。")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleRegisterError は登録失敗時のレスポンスを書き込む。
// バリデーション・重複はフォーム再表示、基盤障害は通知付きで再表示する。
func (h *AuthHandler) handleRegisterError(w http.ResponseWriter, r *http.Request, input auth.RegisterInput, err error) {
	data := view.RegisterFormData{
		Username:    input.Username,
		Email:       input.Email,
		FieldErrors: map[string]string{},
	}

	var flashes []middleware.Flash
	var webErr *model.WebError
	if errors.As(err, &webErr) {
		switch webErr.Kind {
		case model.KindValidation:
			data.FieldErrors = webErr.Fields
		case model.KindConflict:
			flashes = append(flashes, middleware.Flash{Kind: middleware.FlashError, Message: webErr.Message})
		default:
			slog.Error("registration failed", slog.String("error", err.Error()))
			flashes = append(flashes, middleware.Flash{Kind: middleware.FlashError, Message: model.MsgServerFault})
		}
	} else {
		slog.Error("registration failed", slog.String("error", err.Error()))
		flashes = append(flashes, middleware.Flash{Kind: middleware.FlashError, Message: model.MsgServerFault})
	}

	h.renderer.Render(w, http.StatusOK, "register", view.PageData{
		Title:     "ユーザー登録",
		Flashes:   flashes,
		CSRFToken: middleware.CSRFTokenFromRequest(r),
		Data:      data,
	})
}

// ShowLogin はログインフォームを表示する。
// GET /login
// ログイン済みの場合は一覧へリダイレクトする。
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.renderer.Render(w, http.StatusOK, "login", view.PageData{
		Title:     "ログイン",
		Flashes:   middleware.PopFlashes(w, r),
		CSRFToken: middleware.CSRFTokenFromRequest(r),
		Data:      view.LoginFormData{},
	})
}

// Login はログインを処理する。
// POST /login
// 成功時は署名付きセッションCookieを設定し、一覧へリダイレクトする。
// 失敗時はメールアドレスを保持したままフォームを再表示する。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	session, err := h.service.Login(r.Context(), email, password)
	if err != nil {
		h.metrics.RecordLoginFailure()
		h.handleLoginError(w, r, email, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    h.signer.Sign(session.ID),
		Path:     "/",
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.RecordLoginSuccess()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLoginError はログイン失敗時のレスポンスを書き込む。
func (h *AuthHandler) handleLoginError(w http.ResponseWriter, r *http.Request, email string, err error) {
	message := model.MsgInvalidCredentials

	var webErr *model.WebError
	if errors.As(err, &webErr) && webErr.Kind == model.KindServerFault {
		slog.Error("login failed", slog.String("error", err.Error()))
		message = model.MsgServerFault
	}

	h.renderer.Render(w, http.StatusOK, "login", view.PageData{
		Title:     "ログイン",
		Flashes:   []middleware.Flash{{Kind: middleware.FlashError, Message: message}},
		CSRFToken: middleware.CSRFTokenFromRequest(r),
		Data:      view.LoginFormData{Email: email},
	})
}

// Logout はログアウトを処理する。
// GET /logout
// セッションレコードを削除し、Cookieを失効させてログインページへリダイレクトする。
// セッションが無い場合もリダイレクトのみ行い、エラーにはしない。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session, ok := middleware.SessionFromContext(r.Context()); ok {
		if err := h.service.Logout(r.Context(), session.ID); err != nil {
			// Cookieを失効させればログアウト自体は成立するため、削除失敗はログのみ
			slog.Error("failed to delete session on logout",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	middleware.SetFlash(w, middleware.FlashSuccess, "ログアウトしました。")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
