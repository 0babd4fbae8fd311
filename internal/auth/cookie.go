package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CookieSigner はセッションCookieの値をHMAC-SHA256で署名・検証する。
// Cookie値は「セッションID.署名」の形式で、改ざんされた値はセッション無しとして扱われる。
type CookieSigner struct {
	secret []byte
}

// NewCookieSigner はCookieSignerを生成する。secretにはSESSION_SECRETを渡す。
func NewCookieSigner(secret string) *CookieSigner {
	return &CookieSigner{secret: []byte(secret)}
}

// Sign はセッションIDに署名を付与したCookie値を返す。
func (c *CookieSigner) Sign(sessionID string) string {
	return sessionID + "." + c.signature(sessionID)
}

// Verify はCookie値を検証し、セッションIDを取り出す。
// 形式不正または署名不一致の場合はfalseを返す。
func (c *CookieSigner) Verify(value string) (string, bool) {
	sessionID, sig, ok := strings.Cut(value, ".")
	if !ok || sessionID == "" || sig == "" {
		return "", false
	}

	expected := c.signature(sessionID)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}

	return sessionID, true
}

func (c *CookieSigner) signature(sessionID string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}
