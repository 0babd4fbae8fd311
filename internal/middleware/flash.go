package middleware

import (
	"encoding/base64"
	"net/http"
)

// FlashKind はフラッシュ通知の種別を表す。
type FlashKind string

const (
	// FlashSuccess は操作成功の通知。
	FlashSuccess FlashKind = "success"
	// FlashError はエラー通知。
	FlashError FlashKind = "error"
)

// Flash は次のリクエストで1回だけ表示される通知メッセージ。
type Flash struct {
	Kind    FlashKind
	Message string
}

// Cookie値に非ASCII文字を含められないため、メッセージはbase64でエンコードする。
var flashEncoding = base64.URLEncoding

func flashCookieName(kind FlashKind) string {
	return "flash_" + string(kind)
}

// SetFlash はリダイレクト先で表示する通知をCookieに保存する。
func SetFlash(w http.ResponseWriter, kind FlashKind, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName(kind),
		Value:    flashEncoding.EncodeToString([]byte(message)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlashes は保存された通知を読み取り、Cookieを削除して返す。
// 通知が無い場合は空のスライスを返す。
func PopFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	var flashes []Flash

	for _, kind := range []FlashKind{FlashSuccess, FlashError} {
		cookie, err := r.Cookie(flashCookieName(kind))
		if err != nil || cookie.Value == "" {
			continue
		}

		// 読み取り済みの通知は削除する（1回限りの表示）
		http.SetCookie(w, &http.Cookie{
			Name:     flashCookieName(kind),
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		decoded, err := flashEncoding.DecodeString(cookie.Value)
		if err != nil {
			continue
		}

		flashes = append(flashes, Flash{Kind: kind, Message: string(decoded)})
	}

	return flashes
}
