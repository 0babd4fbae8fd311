package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	AuthRate        rate.Limit    // ログイン・登録POSTのレート（req/sec）。10/60 = 約0.167 req/sec
	AuthBurst       int           // バーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 要件: ログイン・登録 10 req/min/IP
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		AuthRate:        rate.Limit(10.0 / 60.0),
		AuthBurst:       10,
		CleanupInterval: 5 * time.Minute,
	}
}

// ipLimiter はIPごとのレートリミッターとアクセス時刻を保持する。
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はIPごとのレート制限を管理する。
// 認証エンドポイント（ログイン・登録のPOST）への総当たり攻撃を緩和する。
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.RWMutex
	limiters map[string]*ipLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		limiters: make(map[string]*ipLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// AuthMiddleware は認証エンドポイント用のレート制限ミドルウェアを返す。
// 制限超過時は通知付きで元のページへリダイレクトする。
func (rl *RateLimiter) AuthMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			limiter := rl.getOrCreateLimiter(ip)

			if !limiter.Allow() {
				slog.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				SetFlash(w, FlashError, "リクエストが多すぎます。しばらく待ってから再度お試しください。")
				http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

// getOrCreateLimiter はIPのリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateLimiter(ip string) *rate.Limiter {
	rl.mu.RLock()
	l, exists := rl.limiters[ip]
	rl.mu.RUnlock()

	if exists {
		rl.mu.Lock()
		l.lastAccess = time.Now()
		rl.mu.Unlock()
		return l.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// RLock解放とLock取得の間に他のゴルーチンが作成した可能性を再確認する
	if l, exists := rl.limiters[ip]; exists {
		l.lastAccess = time.Now()
		return l.limiter
	}

	l = &ipLimiter{
		limiter:    rate.NewLimiter(rl.config.AuthRate, rl.config.AuthBurst),
		lastAccess: time.Now(),
	}
	rl.limiters[ip] = l
	return l.limiter
}

// cleanupLoop は一定間隔で長時間アクセスのないエントリを削除する。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.removeStaleEntries()
		}
	}
}

// removeStaleEntries はクリーンアップ間隔の2倍以上アクセスのないエントリを削除する。
func (rl *RateLimiter) removeStaleEntries() {
	threshold := time.Now().Add(-2 * rl.config.CleanupInterval)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, l := range rl.limiters {
		if l.lastAccess.Before(threshold) {
			delete(rl.limiters, ip)
		}
	}
}

// clientIP はリクエスト元のIPアドレスを返す。
// ポート部を除いたホスト部のみを使用する。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
