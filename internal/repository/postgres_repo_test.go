package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/cinelog/internal/model"
)

// 各Postgresリポジトリがインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

func TestPostgresMovieRepo_ImplementsInterface(t *testing.T) {
	var _ MovieRepository = (*PostgresMovieRepo)(nil)
}

func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresMovieRepo_Initializes(t *testing.T) {
	repo := NewPostgresMovieRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresSessionRepo_Initializes(t *testing.T) {
	repo := NewPostgresSessionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// IsUniqueViolationがSQLSTATE 23505のみを一意制約違反として判定することを検証
func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unique violation",
			err:  &pq.Error{Code: "23505"},
			want: true,
		},
		{
			name: "wrapped unique violation",
			err:  fmt.Errorf("failed to create user: %w", &pq.Error{Code: "23505"}),
			want: true,
		},
		{
			name: "foreign key violation",
			err:  &pq.Error{Code: "23503"},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("connection refused"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

// SessionRepoのFindByIDが期限切れセッションを返さないことの期待動作
// （SQL側のexpires_at > now()と同じ条件をモデル側でも持つ）
func TestSession_ExpiryConcept(t *testing.T) {
	expired := &model.Session{
		ID:        "expired-session",
		UserID:    "user-1",
		Username:  "alice",
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	}

	if !expired.Expired() {
		t.Error("expected session to be expired")
	}
}
