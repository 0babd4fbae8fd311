package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// ErrorPageRenderer はHTMLエラーページを描画する関数。
// handlerパッケージのテンプレートレンダラーを注入する。
type ErrorPageRenderer func(w http.ResponseWriter, r *http.Request, status int)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 500エラーページを返すミドルウェアを生成する。
// panicの詳細はログのみに記録し、クライアントには出さない。
// renderErrorPageがnilの場合はプレーンテキストの500を返す。
func NewRecoveryMiddleware(renderErrorPage ErrorPageRenderer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)
					if renderErrorPage != nil {
						renderErrorPage(w, r, http.StatusInternalServerError)
						return
					}
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
