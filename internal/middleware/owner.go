package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cinelog/internal/model"
)

// movieContextKey はリクエストコンテキストに取得済み映画を格納するためのキー。
var movieContextKey = contextKey("movie")

// MovieFinder は所有権チェックに必要なインターフェース。
// repository.MovieRepositoryの部分集合として定義する。
type MovieFinder interface {
	FindByID(ctx context.Context, id string) (*model.Movie, error)
}

// NewMovieOwner は所有権ゲートミドルウェアを返す。
// URLパラメータ{id}の映画を取得し、認証済みユーザーが作成者であることを検証する。
//   - 映画が存在しない場合: 通知付きで一覧（/）へリダイレクト
//   - 作成者でない場合: 通知付きで詳細（/movies/{id}）へリダイレクト
//   - ストレージ障害: 詳細をログに記録し、一般的な通知付きで一覧へリダイレクト
//   - 成功: 取得済み映画をコンテキストに注入し、後続の再取得を不要にする
//
// DELETEリクエストに対してはリダイレクトではなくJSONの失敗レスポンスを返す。
// 所有権はユーザー識別なしには判定できないため、必ずNewRequireLoginの後に配置すること。
func NewMovieOwner(finder MovieFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok {
				// 認証ゲートを経ずに到達した場合の保険
				denyOwnership(w, r, http.StatusUnauthorized, model.MsgLoginRequired, "/login")
				return
			}

			movieID := chi.URLParam(r, "id")
			movie, err := finder.FindByID(r.Context(), movieID)
			if err != nil {
				slog.Error("failed to fetch movie for ownership check",
					slog.String("movie_id", movieID),
					slog.String("error", err.Error()),
				)
				denyOwnership(w, r, http.StatusInternalServerError, model.MsgServerFault, "/")
				return
			}

			if movie == nil {
				denyOwnership(w, r, http.StatusNotFound, model.MsgMovieNotFound, "/")
				return
			}

			if movie.CreatedBy != session.UserID {
				denyOwnership(w, r, http.StatusForbidden, model.MsgNotMovieOwner, "/movies/"+movie.ID)
				return
			}

			ctx := context.WithValue(r.Context(), movieContextKey, movie)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// denyOwnership はゲート失敗時のレスポンスを書き込む。
// HTMLフローでは通知付きリダイレクト、DELETEではJSONの構造化失敗を返す。
func denyOwnership(w http.ResponseWriter, r *http.Request, status int, message, redirectTo string) {
	if r.Method == http.MethodDelete {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   message,
		})
		return
	}

	SetFlash(w, FlashError, message)
	http.Redirect(w, r, redirectTo, http.StatusSeeOther)
}

// MovieFromContext はリクエストコンテキストから取得済み映画を返す。
// 所有権ゲートを通過したリクエストでのみ有効。
func MovieFromContext(ctx context.Context) (*model.Movie, bool) {
	movie, ok := ctx.Value(movieContextKey).(*model.Movie)
	return movie, ok && movie != nil
}

// ContextWithMovie はコンテキストに映画を注入する。テスト用。
func ContextWithMovie(ctx context.Context, movie *model.Movie) context.Context {
	return context.WithValue(ctx, movieContextKey, movie)
}
