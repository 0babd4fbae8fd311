// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashにはbcryptハッシュのみを保持する。平文パスワードは保存も比較もしない。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// IDはクライアントがCookieで保持する不透明トークン。
// サーバー側レコードとしてユーザーIDとユーザー名を保持する。
type Session struct {
	ID        string
	UserID    string
	Username  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが期限切れかどうかを返す。
func (s *Session) Expired() bool {
	return !s.ExpiresAt.After(time.Now())
}
