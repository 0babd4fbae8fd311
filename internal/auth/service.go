// Package auth はユーザー登録、ログイン、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/cinelog/internal/model"
	"github.com/hitoshi/cinelog/internal/repository"
)

// PasswordMinLen は登録時に要求するパスワードの最小長。
const PasswordMinLen = 6

// RegisterInput はユーザー登録フォームの入力値。
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Register は新規ユーザーを作成する。
// 入力バリデーション → 重複チェック → bcryptハッシュ化 → 保存の順に処理する。
// ユーザー名またはメールアドレスが既に存在する場合はconflictエラーを返す。
// 重複チェックとINSERTの間の競合はDBの一意制約で検出し、同じくconflictとして返す。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	if fields := validateRegisterInput(input); len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	exists, err := s.userRepo.ExistsByUsernameOrEmail(ctx, input.Username, input.Email)
	if err != nil {
		return nil, model.NewServerFaultError(fmt.Errorf("failed to check duplicates: %w", err))
	}
	if exists {
		return nil, model.NewConflictError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, model.NewServerFaultError(fmt.Errorf("failed to hash password: %w", err))
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     strings.TrimSpace(input.Username),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, model.NewConflictError()
		}
		return nil, model.NewServerFaultError(fmt.Errorf("failed to create user: %w", err))
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// Login はメールアドレスとパスワードを検証し、セッションを発行する。
// メールアドレス未登録とパスワード不一致はどちらも同一のinvalid-credentialsエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, model.NewServerFaultError(fmt.Errorf("failed to find user by email: %w", err))
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, model.NewServerFaultError(err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// CurrentSession はセッションIDから有効なセッションを取得する。
// 存在しない・期限切れの場合はnilを返す。
func (s *Service) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	return s.sessionRepo.FindByID(ctx, sessionID)
}

// createSession はセッションを作成し永続化する。
// セッションレコードにはユーザーIDとユーザー名を保持する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// validateRegisterInput は登録入力を検証し、フィールド名→メッセージのマップを返す。
func validateRegisterInput(input RegisterInput) map[string]string {
	fields := make(map[string]string)

	if strings.TrimSpace(input.Username) == "" {
		fields["username"] = "ユーザー名を入力してください。"
	}

	email := strings.TrimSpace(input.Email)
	if email == "" {
		fields["email"] = "メールアドレスを入力してください。"
	} else if !strings.Contains(email, "@") {
		fields["email"] = "メールアドレスの形式が正しくありません。"
	}

	if len(input.Password) < PasswordMinLen {
		fields["password"] = "パスワードは6文字以上で入力してください。"
	} else if input.Password != input.ConfirmPassword {
		fields["confirm_password"] = "パスワードが一致しません。"
	}

	return fields
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
