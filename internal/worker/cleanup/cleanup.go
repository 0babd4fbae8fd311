// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// expires_atを過ぎたセッションレコードを定期バッチで削除する。
// Cookie側のMax-Ageで期限切れセッションは参照されなくなるため、
// このジョブはストレージの肥大化を防ぐためのものである。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionDeleter は期限切れセッションの削除に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupMetrics はクリーンアップジョブが記録するメトリクスのサブセット。
type CleanupMetrics interface {
	RecordSessionsCleaned(count int64)
}

// CleanupJob は期限切れセッションの自動削除ジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	sessions SessionDeleter
	logger   *slog.Logger
	metrics  CleanupMetrics
}

// NewCleanupJob は新しいCleanupJobを生成する。
// metricsはnilでもよく、その場合は記録をスキップする。
func NewCleanupJob(sessions SessionDeleter, logger *slog.Logger, metrics CleanupMetrics) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run は期限切れセッションを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordSessionsCleaned(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RunPeriodic は指定間隔でRunを繰り返し実行する。
// コンテキストのキャンセルで停止する。個々の実行の失敗はログに記録し、
// ループ自体は継続する。
func (j *CleanupJob) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップワーカーを開始しました",
		slog.String("interval", interval.String()),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップワーカーを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				// Runの中でログ済み。次のtickで再試行する。
				continue
			}
		}
	}
}
