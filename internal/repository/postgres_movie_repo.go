package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/cinelog/internal/model"
)

// PostgresMovieRepo はPostgreSQLを使用した映画リポジトリ。
type PostgresMovieRepo struct {
	db *sql.DB
}

// NewPostgresMovieRepo はPostgresMovieRepoを生成する。
func NewPostgresMovieRepo(db *sql.DB) *PostgresMovieRepo {
	return &PostgresMovieRepo{db: db}
}

// Create は映画を作成する。
func (r *PostgresMovieRepo) Create(ctx context.Context, movie *model.Movie) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO movies (id, name, description, year, genres, rating, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		movie.ID, movie.Name, movie.Description, movie.Year,
		pq.Array(movie.Genres), movie.Rating, movie.CreatedBy, movie.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create movie: %w", err)
	}
	return nil
}

// FindByID は指定IDの映画を作成者名付きで取得する。見つからない場合はnilを返す。
func (r *PostgresMovieRepo) FindByID(ctx context.Context, id string) (*model.Movie, error) {
	movie := &model.Movie{}
	err := r.db.QueryRowContext(ctx,
		`SELECT m.id, m.name, m.description, m.year, m.genres, m.rating,
		        m.created_by, u.username, m.created_at
		 FROM movies m
		 JOIN users u ON u.id = m.created_by
		 WHERE m.id = $1`,
		id,
	).Scan(
		&movie.ID, &movie.Name, &movie.Description, &movie.Year,
		pq.Array(&movie.Genres), &movie.Rating,
		&movie.CreatedBy, &movie.CreatedByName, &movie.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find movie: %w", err)
	}

	return movie, nil
}

// List は全映画を作成日時の降順で返す。
func (r *PostgresMovieRepo) List(ctx context.Context) ([]*model.Movie, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.name, m.description, m.year, m.genres, m.rating,
		        m.created_by, u.username, m.created_at
		 FROM movies m
		 JOIN users u ON u.id = m.created_by
		 ORDER BY m.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	defer rows.Close()

	var movies []*model.Movie
	for rows.Next() {
		movie := &model.Movie{}
		if err := rows.Scan(
			&movie.ID, &movie.Name, &movie.Description, &movie.Year,
			pq.Array(&movie.Genres), &movie.Rating,
			&movie.CreatedBy, &movie.CreatedByName, &movie.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan movie row: %w", err)
		}
		movies = append(movies, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movie rows: %w", err)
	}

	return movies, nil
}

// Update は映画の可変フィールドを更新する。created_byとcreated_atは変更しない。
func (r *PostgresMovieRepo) Update(ctx context.Context, movie *model.Movie) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE movies
		 SET name = $2, description = $3, year = $4, genres = $5, rating = $6
		 WHERE id = $1`,
		movie.ID, movie.Name, movie.Description, movie.Year,
		pq.Array(movie.Genres), movie.Rating,
	)
	if err != nil {
		return fmt.Errorf("failed to update movie: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの映画を削除し、削除された行数を返す。
func (r *PostgresMovieRepo) DeleteByID(ctx context.Context, id string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM movies WHERE id = $1`,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete movie: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

// compile-time interface check
var _ MovieRepository = (*PostgresMovieRepo)(nil)
