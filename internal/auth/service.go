// Package auth はパスワードによるログイン、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/seminar/internal/form"
	"github.com/hitoshi/seminar/internal/model"
	"github.com/hitoshi/seminar/internal/repository"
)

// DefaultRedirect はログイン後の既定の遷移先。
const DefaultRedirect = "/profile/edit"

// LoginForm はログインフォームの入力値。
type LoginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
	Next     string `form:"next"`
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	validator   *form.Validator
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	validator *form.Validator,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		validator:   validator,
		config:      config,
	}
}

// Login はメールアドレスとパスワードを検証し、セッションを発行する。
// 入力不備は*model.ValidationError、認証失敗とメールアドレス未確認は*model.APIErrorを返す。
func (s *Service) Login(ctx context.Context, f *LoginForm) (*model.Session, error) {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	if fieldErrs := s.validator.Struct(f); fieldErrs != nil {
		return nil, model.NewValidationError(fieldErrs)
	}

	user, err := s.userRepo.FindByEmail(ctx, f.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// 応答時間を揃えるために比較だけ行う
		bcrypt.CompareHashAndPassword(dummyHash, []byte(f.Password))
		slog.Info("login failed", slog.String("reason", "unknown_email"))
		return nil, model.NewInvalidCredentialsError()
	}
	if !CheckPassword(user.PasswordHash, f.Password) {
		slog.Info("login failed",
			slog.String("reason", "wrong_password"),
			slog.String("user_id", user.ID),
		)
		return nil, model.NewInvalidCredentialsError()
	}
	if !user.VerifiedEmail {
		slog.Info("login failed",
			slog.String("reason", "email_not_verified"),
			slog.String("user_id", user.ID),
		)
		return nil, model.NewEmailNotVerifiedError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
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

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// FindSession は有効なセッションを返す。期限切れや存在しない場合はnilを返す。
// middleware.SessionFinderを満たす。
func (s *Service) FindSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.sessionRepo.FindByID(ctx, sessionID)
}

// SafeRedirect はログイン後の遷移先として安全なパスを返す。
// 同一オリジンの絶対パス以外は既定の遷移先に置き換える。
func SafeRedirect(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return DefaultRedirect
	}
	// "//host" や "/\host" はブラウザが別オリジンとして解釈する
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return DefaultRedirect
	}
	if strings.ContainsAny(next, "\r\n") {
		return DefaultRedirect
	}
	return next
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
