// Package movie は映画カタログのCRUDビジネスロジックを提供する。
package movie

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/cinelog/internal/model"
	"github.com/hitoshi/cinelog/internal/repository"
	"github.com/hitoshi/cinelog/internal/security"
)

// Input は映画フォームの入力値。
type Input struct {
	Name        string
	Description string
	Year        int
	Genres      []string
	Rating      float64
}

// Service は映画に関するビジネスロジックを提供する。
type Service struct {
	movieRepo repository.MovieRepository
	sanitizer security.InputSanitizerService
}

// NewService はServiceを生成する。
func NewService(movieRepo repository.MovieRepository, sanitizer security.InputSanitizerService) *Service {
	return &Service{
		movieRepo: movieRepo,
		sanitizer: sanitizer,
	}
}

// List は全映画を作成日時の降順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Movie, error) {
	movies, err := s.movieRepo.List(ctx)
	if err != nil {
		return nil, model.NewServerFaultError(fmt.Errorf("failed to list movies: %w", err))
	}
	return movies, nil
}

// Get は指定IDの映画を取得する。見つからない場合はnot-foundエラーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Movie, error) {
	movie, err := s.movieRepo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewServerFaultError(fmt.Errorf("failed to find movie: %w", err))
	}
	if movie == nil {
		return nil, model.NewMovieNotFoundError()
	}
	return movie, nil
}

// Create は映画を作成する。所有者は作成したユーザーに固定される。
// 入力はサニタイズ後にバリデーションされ、違反はvalidationエラーとして返す。
func (s *Service) Create(ctx context.Context, ownerID string, input Input) (*model.Movie, error) {
	movie := &model.Movie{
		ID:          uuid.New().String(),
		Name:        s.sanitizer.Sanitize(input.Name),
		Description: s.sanitizer.Sanitize(input.Description),
		Year:        input.Year,
		Genres:      input.Genres,
		Rating:      input.Rating,
		CreatedBy:   ownerID,
		CreatedAt:   time.Now(),
	}

	if fields := movie.Validate(); len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	if err := s.movieRepo.Create(ctx, movie); err != nil {
		return nil, model.NewServerFaultError(fmt.Errorf("failed to create movie: %w", err))
	}

	slog.Info("movie created",
		slog.String("movie_id", movie.ID),
		slog.String("user_id", ownerID),
	)

	return movie, nil
}

// Update は既存映画の可変フィールドを更新する。
// existingは所有権ゲートが取得済みの映画レコードを渡す。
// created_byとcreated_atは入力に関わらず維持される。
func (s *Service) Update(ctx context.Context, existing *model.Movie, input Input) (*model.Movie, error) {
	updated := &model.Movie{
		ID:          existing.ID,
		Name:        s.sanitizer.Sanitize(input.Name),
		Description: s.sanitizer.Sanitize(input.Description),
		Year:        input.Year,
		Genres:      input.Genres,
		Rating:      input.Rating,
		CreatedBy:   existing.CreatedBy,
		CreatedAt:   existing.CreatedAt,
	}

	if fields := updated.Validate(); len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	if err := s.movieRepo.Update(ctx, updated); err != nil {
		return nil, model.NewServerFaultError(fmt.Errorf("failed to update movie: %w", err))
	}

	slog.Info("movie updated",
		slog.String("movie_id", updated.ID),
		slog.String("user_id", updated.CreatedBy),
	)

	return updated, nil
}

// Delete は指定IDの映画を削除する。
// 対象が存在しない場合はnot-foundエラーを返すが、クラッシュはしない（冪等）。
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.movieRepo.DeleteByID(ctx, id)
	if err != nil {
		return model.NewServerFaultError(fmt.Errorf("failed to delete movie: %w", err))
	}
	if deleted == 0 {
		return model.NewMovieNotFoundError()
	}

	slog.Info("movie deleted", slog.String("movie_id", id))
	return nil
}
