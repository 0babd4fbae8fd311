// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/cinelog/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionResolver はセッションの解決に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionResolver interface {
	CurrentSession(ctx context.Context, sessionID string) (*model.Session, error)
}

// CookieVerifier は署名付きCookie値からセッションIDを取り出すインターフェース。
// auth.CookieSignerの部分集合として定義する。
type CookieVerifier interface {
	Verify(value string) (string, bool)
}

// NewSessionLoader は署名付きCookieからセッションを読み取り、
// 有効なセッションをリクエストコンテキストに注入するミドルウェアを返す。
// Cookie無し・署名不正・期限切れはすべて匿名リクエストとして通過させる。
// セッションストア障害も匿名として扱い、リクエスト自体は失敗させない。
func NewSessionLoader(verifier CookieVerifier, resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sessionID, ok := verifier.Verify(cookie.Value)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			session, err := resolver.CurrentSession(r.Context(), sessionID)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireLogin は認証ゲートミドルウェアを返す。
// コンテキストにセッションが無いリクエストは通知付きで/loginへリダイレクトする。
// Cookie自体が無い場合とセッションレコードが無い場合は同一に扱う。
// NewSessionLoaderの後に配置すること。
func NewRequireLogin() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SessionFromContext(r.Context()); !ok {
				SetFlash(w, FlashError, model.MsgLoginRequired)
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションローダーを通過した認証済みリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	return session, ok && session != nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
