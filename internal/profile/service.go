// Package profile は大会参加者プロフィールの表示と更新を提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/seminar/internal/form"
	"github.com/hitoshi/seminar/internal/location"
	"github.com/hitoshi/seminar/internal/model"
	"github.com/hitoshi/seminar/internal/repository"
	"github.com/hitoshi/seminar/internal/security"
)

// UpdateForm はプロフィール更新フォームの入力値。
// 県・地区は学校から導出するため受け付けない。
type UpdateForm struct {
	FirstName   string `form:"first_name" validate:"required,max=150"`
	LastName    string `form:"last_name" validate:"required,max=150"`
	School      int64  `form:"school" validate:"required"`
	Grade       int64  `form:"grade" validate:"required"`
	Phone       string `form:"phone" validate:"omitempty,max=32,phone"`
	ParentPhone string `form:"parent_phone" validate:"omitempty,max=32,phone"`
}

// Service はプロフィールのサービス層。
type Service struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	locations   *location.Service
	validator   *form.Validator
	sanitizer   security.TextSanitizerService
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	locations *location.Service,
	validator *form.Validator,
	sanitizer security.TextSanitizerService,
) *Service {
	return &Service{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		locations:   locations,
		validator:   validator,
		sanitizer:   sanitizer,
		now:         time.Now,
	}
}

// SetNowFunc はテスト用に現在時刻の取得関数を差し替える。
func (s *Service) SetNowFunc(fn func() time.Time) {
	s.now = fn
}

// Detail はプロフィール詳細を返す。Gradeは卒業年度から求め、該当がなければnilのまま。
// 存在しない場合はPROFILE_NOT_FOUNDを返す。
func (s *Service) Detail(ctx context.Context, profileID int64) (*model.ProfileDetail, error) {
	detail, err := s.profileRepo.FindDetailByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile detail: %w", err)
	}
	if detail == nil {
		return nil, model.NewProfileNotFoundError(profileID)
	}

	grade, err := s.locations.GradeByYearOfGraduation(ctx, detail.YearOfGraduation)
	if err != nil {
		return nil, err
	}
	detail.Grade = grade
	return detail, nil
}

// InitialValues はログイン中ユーザーの更新フォームの初期値を返す。
// 表示専用の導出項目（county, district, school_name）と、卒業年度から求めたgradeを含む。
// 該当する学年がない場合、gradeは空になる。
func (s *Service) InitialValues(ctx context.Context, userID string) (map[string]string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	p, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError(0)
	}

	values := map[string]string{
		"first_name":   user.FirstName,
		"last_name":    user.LastName,
		"phone":        p.Phone,
		"parent_phone": p.ParentPhone,
		"school":       strconv.FormatInt(p.SchoolID, 10),
		"grade":        "",
	}

	grade, err := s.locations.GradeByYearOfGraduation(ctx, p.YearOfGraduation)
	if err != nil {
		return nil, err
	}
	if grade != nil {
		values["grade"] = strconv.FormatInt(grade.ID, 10)
	}

	if err := s.addDerived(ctx, values, p.SchoolID); err != nil {
		return nil, err
	}
	return values, nil
}

// SubmittedValues は送信されたフォームを再表示用の値に変換し、学校から導出項目を再計算する。
func (s *Service) SubmittedValues(ctx context.Context, f *UpdateForm) (map[string]string, error) {
	values := form.Values(f)
	if f.School != 0 {
		if err := s.addDerived(ctx, values, f.School); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// ProfileIDForUser はユーザーのプロフィールIDを返す。
func (s *Service) ProfileIDForUser(ctx context.Context, userID string) (int64, error) {
	p, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to find profile: %w", err)
	}
	if p == nil {
		return 0, model.NewProfileNotFoundError(0)
	}
	return p.ID, nil
}

// Update はフォームを検証し、氏名とプロフィールを同一トランザクションで更新する。
// 成功時は更新したプロフィールのIDを返す。入力不備は*model.ValidationErrorを返す。
func (s *Service) Update(ctx context.Context, userID string, f *UpdateForm) (int64, error) {
	fieldErrs := s.validator.Struct(f)
	if fieldErrs == nil {
		fieldErrs = model.FieldErrors{}
	}

	var grade *model.Grade
	if !fieldErrs.Has("school") {
		placement, err := s.locations.SchoolPlacement(ctx, f.School)
		if err != nil {
			return 0, err
		}
		if placement == nil {
			fieldErrs.Add("school", form.CodeInvalidChoice)
		}
	}
	if !fieldErrs.Has("grade") {
		g, err := s.locations.ActiveGrade(ctx, f.Grade)
		if err != nil {
			return 0, err
		}
		if g == nil {
			fieldErrs.Add("grade", form.CodeInvalidChoice)
		}
		grade = g
	}
	if len(fieldErrs) > 0 {
		return 0, model.NewValidationError(fieldErrs)
	}

	p, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to find profile: %w", err)
	}
	if p == nil {
		return 0, model.NewProfileNotFoundError(0)
	}

	p.SchoolID = f.School
	p.YearOfGraduation = s.locations.YearOfGraduation(grade)
	p.Phone = f.Phone
	p.ParentPhone = f.ParentPhone
	p.UpdatedAt = s.now()

	firstName := s.sanitizer.Sanitize(f.FirstName)
	lastName := s.sanitizer.Sanitize(f.LastName)
	if err := s.profileRepo.UpdateWithUserNames(ctx, p, firstName, lastName); err != nil {
		return 0, fmt.Errorf("failed to update profile: %w", err)
	}

	slog.Info("profile updated",
		slog.String("user_id", userID),
		slog.Int64("profile_id", p.ID),
	)
	return p.ID, nil
}

// addDerived は学校から導出した県・地区・学校名をvaluesに追加する。
func (s *Service) addDerived(ctx context.Context, values map[string]string, schoolID int64) error {
	placement, err := s.locations.SchoolPlacement(ctx, schoolID)
	if err != nil {
		return err
	}
	if placement == nil {
		return nil
	}
	values["county"] = strconv.FormatInt(placement.County.ID, 10)
	values["district"] = strconv.FormatInt(placement.District.ID, 10)
	values["school_name"] = placement.School.DisplayName()
	return nil
}
