package model

import (
	"strings"
	"time"
)

// 映画バリデーションの境界値。
const (
	MovieNameMaxLen        = 100
	MovieDescriptionMaxLen = 500
	MovieMinYear           = 1888 // 世界最初の映画の公開年
	MovieMaxGenres         = 5
	MovieMinRating         = 0.0
	MovieMaxRating         = 10.0
)

// Genres はフォームで選択可能なジャンルの一覧。
var Genres = []string{
	"Action", "Adventure", "Comedy", "Drama", "Fantasy",
	"Horror", "Romance", "Sci-Fi", "Thriller",
}

// Movie は映画カタログのエントリを表す。
// CreatedByは作成したユーザーのIDを保持する外部キー参照で、作成後は変更されない。
type Movie struct {
	ID            string
	Name          string
	Description   string
	Year          int
	Genres        []string
	Rating        float64
	CreatedBy     string
	CreatedByName string // 表示用。一覧・詳細取得時にusersからJOINで取得する。
	CreatedAt     time.Time
}

// MaxYear は許容される公開年の上限を返す。現在年+5年まで許容する。
func MaxYear() int {
	return time.Now().Year() + 5
}

// Validate は境界値バリデーションを行い、フィールド名→エラーメッセージのマップを返す。
// バリデーション違反はハードエラーではなくフォームの再表示で回復するため、
// errorではなくマップで返す。違反がない場合は空のマップを返す。
func (m *Movie) Validate() map[string]string {
	errs := make(map[string]string)

	name := strings.TrimSpace(m.Name)
	if name == "" {
		errs["name"] = "映画名を入力してください。"
	} else if len([]rune(name)) > MovieNameMaxLen {
		errs["name"] = "映画名は100文字以内で入力してください。"
	}

	desc := strings.TrimSpace(m.Description)
	if desc == "" {
		errs["description"] = "説明を入力してください。"
	} else if len([]rune(desc)) > MovieDescriptionMaxLen {
		errs["description"] = "説明は500文字以内で入力してください。"
	}

	if m.Year < MovieMinYear || m.Year > MaxYear() {
		errs["year"] = "公開年は1888年から5年後までの範囲で入力してください。"
	}

	if len(m.Genres) < 1 || len(m.Genres) > MovieMaxGenres {
		errs["genres"] = "ジャンルは1〜5個選択してください。"
	}

	if m.Rating < MovieMinRating || m.Rating > MovieMaxRating {
		errs["rating"] = "評価は0〜10の範囲で入力してください。"
	}

	return errs
}
