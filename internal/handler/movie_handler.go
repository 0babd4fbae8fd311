package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cinelog/internal/middleware"
	"github.com/hitoshi/cinelog/internal/model"
	"github.com/hitoshi/cinelog/internal/movie"
	"github.com/hitoshi/cinelog/internal/view"
)

// MovieServiceInterface は映画ハンドラーが必要とするサービスインターフェース。
type MovieServiceInterface interface {
	// List は全映画を作成日時の降順で返す。
	List(ctx context.Context) ([]*model.Movie, error)
	// Get は指定IDの映画を取得する。
	Get(ctx context.Context, id string) (*model.Movie, error)
	// Create は映画を作成する。
	Create(ctx context.Context, ownerID string, input movie.Input) (*model.Movie, error)
	// Update は所有権ゲートが取得済みの映画を更新する。
	Update(ctx context.Context, existing *model.Movie, input movie.Input) (*model.Movie, error)
	// Delete は指定IDの映画を削除する。
	Delete(ctx context.Context, id string) error
}

// MovieMetrics は映画ハンドラーが記録するメトリクスのサブセット。
type MovieMetrics interface {
	RecordMovieCreated()
	RecordMovieUpdated()
	RecordMovieDeleted()
}

// MovieHandler は映画カタログのHTTPハンドラー。
type MovieHandler struct {
	service  MovieServiceInterface
	renderer *view.Renderer
	metrics  MovieMetrics
}

// NewMovieHandler はMovieHandlerを生成する。
func NewMovieHandler(service MovieServiceInterface, renderer *view.Renderer, metrics MovieMetrics) *MovieHandler {
	return &MovieHandler{
		service:  service,
		renderer: renderer,
		metrics:  metrics,
	}
}

// Index は映画一覧を表示する。
// GET /
// ストレージ障害時は空の一覧と通知を表示し、ページ自体は返す。
func (h *MovieHandler) Index(w http.ResponseWriter, r *http.Request) {
	flashes := middleware.PopFlashes(w, r)

	movies, err := h.service.List(r.Context())
	if err != nil {
		slog.Error("failed to list movies", slog.String("error", err.Error()))
		flashes = append(flashes, middleware.Flash{Kind: middleware.FlashError, Message: model.MsgServerFault})
		movies = nil
	}

	session, _ := middleware.SessionFromContext(r.Context())
	h.renderer.Render(w, http.StatusOK, "index", view.PageData{
		Title:     "映画一覧",
		Session:   session,
		Flashes:   flashes,
		CSRFToken: middleware.CSRFTokenFromRequest(r),
		Data:      view.IndexData{Movies: movies},
	})
}

// Show は映画詳細を表示する。
// GET /movies/{id}
// 存在しない場合は通知付きで一覧へリダイレクトする。
func (h *MovieHandler) Show(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "id")
	session, _ := middleware.SessionFromContext(r.Context())

	m, err := h.service.Get(r.Context(), movieID)
	if err != nil {
		var webErr *model.WebError
		if errors.As(err, &webErr) && webErr.Kind == model.KindNotFound {
			middleware.SetFlash(w, middleware.FlashError, model.MsgMovieNotFound)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		slog.Error("failed to get movie",
			slog.String("movie_id", movieID),
			slog.String("error", err.Error()),
		)
		middleware.SetFlash(w, middleware.FlashError, model.MsgServerFault)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	isOwner := session != nil && session.UserID == m.CreatedBy
	h.renderer.Render(w, http.StatusOK, "movie_show", view.PageData{
		Title:     m.Name,
		Session:   session,
		Flashes:   middleware.PopFlashes(w, r),
		CSRFToken: middleware.CSRFTokenFromRequest(r),
		Data:      view.MovieShowData{Movie: m, IsOwner: isOwner},
	})
}

// ShowAddForm は映画の登録フォームを表示する。
// GET /movies/add（要ログイン）
func (h *MovieHandler) ShowAddForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, addFormData(movie.Input{}, nil), nil)
}

// Create は映画の登録を処理する。
// POST /movies/add（要ログイン）
// バリデーション失敗時は入力値とフィールドエラー付きでフォームを再表示する。
func (h *MovieHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		// 認証ゲートを経ずに到達した場合の保険
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	input, err := parseMovieForm(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if _, err := h.service.Create(r.Context(), session.UserID, input); err != nil {
		h.handleFormError(w, r, addFormData(input, nil), err)
		return
	}

	h.metrics.RecordMovieCreated()
	middleware.SetFlash(w, middleware.FlashSuccess, "映画を登録しました。")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ShowEditForm は映画の編集フォームを表示する。
// GET /movies/{id}/edit（要ログイン・要所有権）
// 所有権ゲートが取得済みの映画をコンテキストから受け取り、現在値でフォームを埋める。
func (h *MovieHandler) ShowEditForm(w http.ResponseWriter, r *http.Request) {
	m, ok := middleware.MovieFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	input := movie.Input{
		Name:        m.Name,
		Description: m.Description,
		Year:        m.Year,
		Genres:      m.Genres,
		Rating:      m.Rating,
	}
	h.renderForm(w, r, http.StatusOK, editFormData(m.ID, input, nil), nil)
}

// Update は映画の更新を処理する。
// POST /movies/{id}/edit（要ログイン・要所有権）
// 成功時は詳細ページへリダイレクトする。created_byとcreated_atは変更されない。
func (h *MovieHandler) Update(w http.ResponseWriter, r *http.Request) {
	m, ok := middleware.MovieFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	input, err := parseMovieForm(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	updated, err := h.service.Update(r.Context(), m, input)
	if err != nil {
		h.handleFormError(w, r, editFormData(m.ID, input, nil), err)
		return
	}

	h.metrics.RecordMovieUpdated()
	middleware.SetFlash(w, middleware.FlashSuccess, "映画を更新しました。")
	http.Redirect(w, r, "/movies/"+updated.ID, http.StatusSeeOther)
}

// Delete は映画の削除を処理する。
// DELETE /movies/{id}（要ログイン・要所有権）
// fetch経由で呼ばれるため、常にJSONで応答する。
func (h *MovieHandler) Delete(w http.ResponseWriter, r *http.Request) {
	m, ok := middleware.MovieFromContext(r.Context())
	if !ok {
		writeDeleteResponse(w, http.StatusNotFound, false, model.MsgMovieNotFound)
		return
	}

	if err := h.service.Delete(r.Context(), m.ID); err != nil {
		var webErr *model.WebError
		if errors.As(err, &webErr) && webErr.Kind == model.KindNotFound {
			writeDeleteResponse(w, http.StatusNotFound, false, model.MsgMovieNotFound)
			return
		}

		slog.Error("failed to delete movie",
			slog.String("movie_id", m.ID),
			slog.String("error", err.Error()),
		)
		writeDeleteResponse(w, http.StatusInternalServerError, false, model.MsgServerFault)
		return
	}

	h.metrics.RecordMovieDeleted()
	writeDeleteResponse(w, http.StatusOK, true, "")
}

// --- ヘルパー関数 ---

// parseMovieForm はフォーム値をmovie.Inputへ変換する。
// 年・評価の数値変換失敗は範囲外の値として残し、バリデーションで拾わせる。
func parseMovieForm(r *http.Request) (movie.Input, error) {
	if err := r.ParseForm(); err != nil {
		return movie.Input{}, err
	}

	year, err := strconv.Atoi(r.PostFormValue("year"))
	if err != nil {
		year = 0
	}

	rating, err := strconv.ParseFloat(r.PostFormValue("rating"), 64)
	if err != nil {
		rating = -1
	}

	return movie.Input{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Year:        year,
		Genres:      r.PostForm["genres"],
		Rating:      rating,
	}, nil
}

func addFormData(input movie.Input, fieldErrors map[string]string) view.MovieFormData {
	return view.MovieFormData{
		Heading:     "映画を登録",
		Action:      "/movies/add",
		Submit:      "登録",
		Input:       input,
		FieldErrors: fieldErrors,
		GenreList:   model.Genres,
		MinYear:     model.MovieMinYear,
		MaxYear:     model.MaxYear(),
	}
}

func editFormData(movieID string, input movie.Input, fieldErrors map[string]string) view.MovieFormData {
	return view.MovieFormData{
		Heading:     "映画を編集",
		Action:      "/movies/" + movieID + "/edit",
		Submit:      "更新",
		Input:       input,
		FieldErrors: fieldErrors,
		GenreList:   model.Genres,
		MinYear:     model.MovieMinYear,
		MaxYear:     model.MaxYear(),
	}
}

// renderForm は映画フォームページを描画する。
func (h *MovieHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, data view.MovieFormData, flashes []middleware.Flash) {
	session, _ := middleware.SessionFromContext(r.Context())
	if flashes == nil {
		flashes = middleware.PopFlashes(w, r)
	}

	h.renderer.Render(w, status, "movie_form", view.PageData{
		Title:     data.Heading,
		Session:   session,
		Flashes:   flashes,
		CSRFToken: middleware.CSRFTokenFromRequest(r),
		Data:      data,
	})
}

// handleFormError は登録・更新失敗時のフォーム再表示を行う。
// バリデーションはフィールドエラー付き、基盤障害は一般的な通知付きで再表示する。
func (h *MovieHandler) handleFormError(w http.ResponseWriter, r *http.Request, data view.MovieFormData, err error) {
	var flashes []middleware.Flash

	var webErr *model.WebError
	if errors.As(err, &webErr) && webErr.Kind == model.KindValidation {
		data.FieldErrors = webErr.Fields
	} else {
		slog.Error("movie form submission failed", slog.String("error", err.Error()))
		flashes = []middleware.Flash{{Kind: middleware.FlashError, Message: model.MsgServerFault}}
	}

	h.renderForm(w, r, http.StatusOK, data, flashes)
}

// writeDeleteResponse は削除APIのJSONレスポンスを書き込む。
func writeDeleteResponse(w http.ResponseWriter, status int, success bool, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := map[string]any{"success": success}
	if errMsg != "" {
		body["error"] = errMsg
	}
	json.NewEncoder(w).Encode(body)
}
