// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/cinelog/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	// ユーザー名またはメールアドレスが重複している場合は一意制約違反エラーを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ExistsByUsernameOrEmail はユーザー名またはメールアドレスが既に使用されているかを返す。
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
}

// MovieRepository は映画データの永続化インターフェース。
type MovieRepository interface {
	// Create は映画を作成する。
	Create(ctx context.Context, movie *model.Movie) error

	// FindByID は指定IDの映画を作成者名付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Movie, error)

	// List は全映画を作成日時の降順で返す。
	List(ctx context.Context) ([]*model.Movie, error)

	// Update は映画の可変フィールド（name, description, year, genres, rating）を更新する。
	// created_byとcreated_atは変更しない。
	Update(ctx context.Context, movie *model.Movie) error

	// DeleteByID は指定IDの映画を削除し、削除された行数を返す。
	// 対象が存在しない場合は0を返す。エラーにはしない。
	DeleteByID(ctx context.Context, id string) (int64, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
