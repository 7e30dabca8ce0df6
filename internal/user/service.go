// Package user はユーザー登録、メールアドレス確認、パスワード再設定のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/seminar/internal/auth"
	"github.com/hitoshi/seminar/internal/form"
	"github.com/hitoshi/seminar/internal/locale"
	"github.com/hitoshi/seminar/internal/location"
	"github.com/hitoshi/seminar/internal/mail"
	"github.com/hitoshi/seminar/internal/metrics"
	"github.com/hitoshi/seminar/internal/model"
	"github.com/hitoshi/seminar/internal/repository"
	"github.com/hitoshi/seminar/internal/security"
	"github.com/hitoshi/seminar/internal/token"
)

// mailTimeout はメール送信1回あたりの上限時間。
const mailTimeout = 30 * time.Second

// RegistrationForm は登録フォーム（アカウント＋プロフィール）の入力値。
type RegistrationForm struct {
	Email       string `form:"email" validate:"required,email,max=254"`
	Password1   string `form:"password1" validate:"required,password"`
	Password2   string `form:"password2" validate:"required,eqfield=Password1"`
	FirstName   string `form:"first_name" validate:"required,max=150"`
	LastName    string `form:"last_name" validate:"required,max=150"`
	School      int64  `form:"school" validate:"required"`
	Grade       int64  `form:"grade" validate:"required"`
	Phone       string `form:"phone" validate:"omitempty,max=32,phone"`
	ParentPhone string `form:"parent_phone" validate:"omitempty,max=32,phone"`
	GDPR        bool   `form:"gdpr" validate:"required"`
}

// PasswordResetRequestForm はパスワード再設定の申請フォームの入力値。
type PasswordResetRequestForm struct {
	Email string `form:"email" validate:"required,email"`
}

// SetPasswordForm は新しいパスワードの入力値。
type SetPasswordForm struct {
	Password1 string `form:"password1" validate:"required,password"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

// TokenGenerator はユーザー状態に紐づくトークンの生成・検証インターフェース。
// token.Generatorが満たす。
type TokenGenerator interface {
	Make(user *model.User) (string, error)
	Check(user *model.User, token string) bool
}

// MailComposer はメール本文の組み立てインターフェース。mail.Composerが満たす。
type MailComposer interface {
	Verification(l *locale.Localizer, user *model.User, uidb64, token string) (*mail.Message, error)
	PasswordReset(l *locale.Localizer, user *model.User, uidb64, token string) (*mail.Message, error)
}

// Deps はServiceの依存。
type Deps struct {
	UserRepo     repository.UserRepository
	SessionRepo  repository.SessionRepository
	Locations    *location.Service
	Validator    *form.Validator
	Sanitizer    security.TextSanitizerService
	VerifyTokens TokenGenerator
	ResetTokens  TokenGenerator
	Mailer       mail.Mailer
	Composer     MailComposer
	Metrics      metrics.MetricsCollector
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	locations    *location.Service
	validator    *form.Validator
	sanitizer    security.TextSanitizerService
	verifyTokens TokenGenerator
	resetTokens  TokenGenerator
	mailer       mail.Mailer
	composer     MailComposer
	metrics      metrics.MetricsCollector
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// Metricsがnilの場合は記録しない。
func NewService(deps Deps) *Service {
	m := deps.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		userRepo:     deps.UserRepo,
		sessionRepo:  deps.SessionRepo,
		locations:    deps.Locations,
		validator:    deps.Validator,
		sanitizer:    deps.Sanitizer,
		verifyTokens: deps.VerifyTokens,
		resetTokens:  deps.ResetTokens,
		mailer:       deps.Mailer,
		composer:     deps.Composer,
		metrics:      m,
		now:          time.Now,
	}
}

// SetNowFunc はテスト用に現在時刻の取得関数を差し替える。
func (s *Service) SetNowFunc(fn func() time.Time) {
	s.now = fn
}

// Register はアカウントとプロフィールを作成し、確認メールを1通送信する。
// 入力不備（登録済みメールアドレスを含む）は*model.ValidationErrorを返す。
// 事前確認をすり抜けた同時登録はEMAIL_EXISTSの*model.APIErrorを返す。
// 確認メールの送信失敗はログに記録し、登録自体は取り消さない。
func (s *Service) Register(ctx context.Context, l *locale.Localizer, f *RegistrationForm) (*model.User, error) {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))

	fieldErrs := s.validator.Struct(f)
	if fieldErrs == nil {
		fieldErrs = model.FieldErrors{}
	}

	if !fieldErrs.Has("school") {
		placement, err := s.locations.SchoolPlacement(ctx, f.School)
		if err != nil {
			return nil, err
		}
		if placement == nil {
			fieldErrs.Add("school", form.CodeInvalidChoice)
		}
	}

	var grade *model.Grade
	if !fieldErrs.Has("grade") {
		g, err := s.locations.ActiveGrade(ctx, f.Grade)
		if err != nil {
			return nil, err
		}
		if g == nil {
			fieldErrs.Add("grade", form.CodeInvalidChoice)
		}
		grade = g
	}

	if !fieldErrs.Has("email") {
		existing, err := s.userRepo.FindByEmail(ctx, f.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by email: %w", err)
		}
		if existing != nil {
			fieldErrs.Add("email", form.CodeUnique)
		}
	}

	if len(fieldErrs) > 0 {
		result := metrics.ResultInvalid
		if fieldErrs.HasCode("email", form.CodeUnique) {
			result = metrics.ResultEmailExists
		}
		s.metrics.RecordRegistration(result)
		return nil, model.NewValidationError(fieldErrs)
	}

	hash, err := auth.HashPassword(f.Password1)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        f.Email,
		PasswordHash: hash,
		FirstName:    s.sanitizer.Sanitize(f.FirstName),
		LastName:     s.sanitizer.Sanitize(f.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := &model.Profile{
		UserID:           user.ID,
		SchoolID:         f.School,
		YearOfGraduation: s.locations.YearOfGraduation(grade),
		Phone:            f.Phone,
		ParentPhone:      f.ParentPhone,
		GDPR:             f.GDPR,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.userRepo.CreateWithProfile(ctx, user, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.RecordRegistration(metrics.ResultEmailExists)
			return nil, model.NewEmailExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordRegistration(metrics.ResultSuccess)
	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.Int64("profile_id", profile.ID),
	)

	if err := s.SendVerificationEmail(ctx, l, user); err != nil {
		slog.Error("failed to send verification email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// SendVerificationEmail はユーザーに確認メールを送信する。
func (s *Service) SendVerificationEmail(ctx context.Context, l *locale.Localizer, user *model.User) error {
	tok, err := s.verifyTokens.Make(user)
	if err != nil {
		s.metrics.RecordVerificationEmail(metrics.ResultFailure)
		return fmt.Errorf("failed to make verification token: %w", err)
	}

	msg, err := s.composer.Verification(l, user, token.EncodeUID(user.ID), tok)
	if err != nil {
		s.metrics.RecordVerificationEmail(metrics.ResultFailure)
		return err
	}

	if err := s.send(ctx, msg); err != nil {
		s.metrics.RecordVerificationEmail(metrics.ResultFailure)
		return err
	}

	s.metrics.RecordVerificationEmail(metrics.ResultSuccess)
	slog.Info("verification email sent", slog.String("user_id", user.ID))
	return nil
}

// Verify は確認リンクを検証し、有効であればメールアドレスを確認済みにする。
// uidb64のデコード失敗、ユーザー不在、トークン不正はいずれもfalseを返し、
// 失敗の種類はログにのみ記録する。
func (s *Service) Verify(ctx context.Context, uidb64, tok string) bool {
	user := s.userFromUID(ctx, uidb64, "email verification")
	if user == nil || !s.verifyTokens.Check(user, tok) {
		if user != nil {
			slog.Info("email verification failed",
				slog.String("reason", "invalid_token"),
				slog.String("user_id", user.ID),
			)
		}
		s.metrics.RecordEmailVerification(metrics.ResultInvalid)
		return false
	}

	if err := s.userRepo.MarkEmailVerified(ctx, user.ID); err != nil {
		slog.Error("failed to mark email verified",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordEmailVerification(metrics.ResultFailure)
		return false
	}

	s.metrics.RecordEmailVerification(metrics.ResultSuccess)
	slog.Info("email verified", slog.String("user_id", user.ID))
	return true
}

// RequestPasswordReset は登録済みのメールアドレスであれば再設定リンクを送信する。
// アカウントの有無は応答から判別できないよう、未登録でもnilを返す。
func (s *Service) RequestPasswordReset(ctx context.Context, l *locale.Localizer, f *PasswordResetRequestForm) error {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	if fieldErrs := s.validator.Struct(f); fieldErrs != nil {
		return model.NewValidationError(fieldErrs)
	}

	user, err := s.userRepo.FindByEmail(ctx, f.Email)
	if err != nil {
		return fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		slog.Info("password reset requested for unknown email")
		return nil
	}

	tok, err := s.resetTokens.Make(user)
	if err != nil {
		return fmt.Errorf("failed to make password reset token: %w", err)
	}
	msg, err := s.composer.PasswordReset(l, user, token.EncodeUID(user.ID), tok)
	if err != nil {
		return err
	}
	if err := s.send(ctx, msg); err != nil {
		slog.Error("failed to send password reset email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	slog.Info("password reset email sent", slog.String("user_id", user.ID))
	return nil
}

// CheckPasswordResetLink は再設定リンクが有効かどうかを返す。
func (s *Service) CheckPasswordResetLink(ctx context.Context, uidb64, tok string) bool {
	user := s.userFromUID(ctx, uidb64, "password reset")
	return user != nil && s.resetTokens.Check(user, tok)
}

// ResetPassword は再設定リンクを再検証したうえでパスワードを更新し、全セッションを破棄する。
// リンクが無効な場合はINVALID_TOKEN、入力不備は*model.ValidationErrorを返す。
func (s *Service) ResetPassword(ctx context.Context, uidb64, tok string, f *SetPasswordForm) error {
	user := s.userFromUID(ctx, uidb64, "password reset")
	if user == nil || !s.resetTokens.Check(user, tok) {
		return model.NewInvalidTokenError()
	}

	if fieldErrs := s.validator.Struct(f); fieldErrs != nil {
		return model.NewValidationError(fieldErrs)
	}

	hash, err := auth.HashPassword(f.Password1)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.sessionRepo.DeleteByUserID(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	slog.Info("password reset", slog.String("user_id", user.ID))
	return nil
}

// userFromUID はuidb64からユーザーを取得する。取得できない場合はnilを返し、理由をログに記録する。
func (s *Service) userFromUID(ctx context.Context, uidb64, flow string) *model.User {
	id, err := token.DecodeUID(uidb64)
	if err == nil {
		_, err = uuid.Parse(id)
	}
	if err != nil {
		slog.Debug(flow+" link rejected",
			slog.String("reason", "decode"),
			slog.String("error", err.Error()),
		)
		return nil
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		slog.Error(flow+" link rejected",
			slog.String("reason", "lookup"),
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if user == nil {
		slog.Warn(flow+" link rejected",
			slog.String("reason", "not_found"),
			slog.String("user_id", id),
		)
		return nil
	}
	return user
}

func (s *Service) send(ctx context.Context, msg *mail.Message) error {
	ctx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()
	return s.mailer.Send(ctx, msg)
}
