// Package view は埋め込みテンプレートによるHTMLレンダリングを提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/cinelog/internal/middleware"
	"github.com/hitoshi/cinelog/internal/model"
	"github.com/hitoshi/cinelog/internal/movie"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// pageNames はレンダリング可能なページテンプレートの一覧。
var pageNames = []string{
	"index",
	"movie_show",
	"movie_form",
	"login",
	"register",
	"not_found",
	"server_error",
}

// PageData は全ページ共通のテンプレートデータ。
type PageData struct {
	Title     string
	Session   *model.Session // 未ログイン時はnil
	Flashes   []middleware.Flash
	CSRFToken string
	Data      any
}

// IndexData は映画一覧ページのデータ。
type IndexData struct {
	Movies []*model.Movie
}

// MovieShowData は映画詳細ページのデータ。
type MovieShowData struct {
	Movie   *model.Movie
	IsOwner bool
}

// MovieFormData は映画の登録・編集フォームのデータ。
// バリデーション失敗時はInputに入力値を、FieldErrorsにフィールド別メッセージを入れて再描画する。
type MovieFormData struct {
	Heading     string
	Action      string
	Submit      string
	Input       movie.Input
	FieldErrors map[string]string
	GenreList   []string
	MinYear     int
	MaxYear     int
}

// LoginFormData はログインフォームのデータ。
type LoginFormData struct {
	Email string
}

// RegisterFormData はユーザー登録フォームのデータ。
type RegisterFormData struct {
	Username    string
	Email       string
	FieldErrors map[string]string
}

// Renderer はページ名ごとにパース済みテンプレートを保持する。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer は埋め込みテンプレートをパースしてRendererを生成する。
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"formatRating": func(rating float64) string {
			return fmt.Sprintf("%.1f", rating)
		},
		"formatDate": func(t interface{ Format(string) string }) string {
			return t.Format("2006-01-02")
		},
		"joinGenres": func(genres []string) string {
			return strings.Join(genres, " / ")
		},
		"hasGenre": func(genres []string, genre string) bool {
			for _, g := range genres {
				if g == genre {
					return true
				}
			}
			return false
		},
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(
			templateFS,
			"templates/layout.html",
			"templates/pages/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Renderer{pages: pages}, nil
}

// Render は指定ページをレンダリングしてレスポンスに書き込む。
// テンプレート実行エラー時に壊れたHTMLを返さないよう、バッファへ書いてから出力する。
func (rd *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) {
	tmpl, ok := rd.pages[page]
	if !ok {
		slog.Error("unknown template page", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		slog.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// ErrorPage はステータスコードに応じたエラーページを描画する。
// recoveryミドルウェアのErrorPageRendererとして注入する。
func (rd *Renderer) ErrorPage(w http.ResponseWriter, r *http.Request, status int) {
	page := "server_error"
	title := "サーバーエラー"
	if status == http.StatusNotFound {
		page = "not_found"
		title = "ページが見つかりません"
	}
	rd.Render(w, status, page, PageData{Title: title})
}

// StaticHandler は埋め込み静的ファイル（CSS・JS）を配信するハンドラーを返す。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// go:embedが成功していれば到達しない
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
