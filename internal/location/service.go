// Package location は県・地区・学校の連動選択肢と学年の参照を提供する。
package location

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/seminar/internal/model"
	"github.com/hitoshi/seminar/internal/repository"
)

// DistrictOption は地区選択肢のJSON表現。
type DistrictOption struct {
	PK   int64  `json:"pk"`
	Name string `json:"name"`
}

// SchoolOption は学校選択肢のJSON表現。
type SchoolOption struct {
	Value int64  `json:"value"`
	Label string `json:"label"`
}

// Placement は学校とそこから導出される地区・県の組。
type Placement struct {
	School   model.School
	District model.District
	County   model.County
}

// Service は所在地と学年の参照サービス。
type Service struct {
	locationRepo repository.LocationRepository
	gradeRepo    repository.GradeRepository
	now          func() time.Time
}

// NewService はServiceを生成する。
func NewService(locationRepo repository.LocationRepository, gradeRepo repository.GradeRepository) *Service {
	return &Service{
		locationRepo: locationRepo,
		gradeRepo:    gradeRepo,
		now:          time.Now,
	}
}

// SetNowFunc はテスト用に現在時刻の取得関数を差し替える。
func (s *Service) SetNowFunc(fn func() time.Time) {
	s.now = fn
}

// DistrictsByCounty は県に属する地区の選択肢を名前順で返す。
// 県が存在しない場合はCOUNTY_NOT_FOUNDを返す。
func (s *Service) DistrictsByCounty(ctx context.Context, countyID int64) ([]DistrictOption, error) {
	if err := s.requireCounty(ctx, countyID); err != nil {
		return nil, err
	}

	districts, err := s.locationRepo.ListDistrictsByCounty(ctx, countyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list districts: %w", err)
	}

	options := make([]DistrictOption, 0, len(districts))
	for _, d := range districts {
		options = append(options, DistrictOption{PK: d.ID, Name: d.Name})
	}
	return options, nil
}

// SchoolsByCounty は県内の全地区の学校の選択肢を返す。
// 県が存在しない場合はCOUNTY_NOT_FOUNDを返す。
func (s *Service) SchoolsByCounty(ctx context.Context, countyID int64) ([]SchoolOption, error) {
	if err := s.requireCounty(ctx, countyID); err != nil {
		return nil, err
	}

	schools, err := s.locationRepo.ListSchoolsByCounty(ctx, countyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schools by county: %w", err)
	}
	return schoolOptions(schools), nil
}

// SchoolsByDistrict は地区に属する学校の選択肢を返す。
// 地区が存在しない場合はDISTRICT_NOT_FOUNDを返す。
func (s *Service) SchoolsByDistrict(ctx context.Context, districtID int64) ([]SchoolOption, error) {
	district, err := s.locationRepo.FindDistrictByID(ctx, districtID)
	if err != nil {
		return nil, fmt.Errorf("failed to find district: %w", err)
	}
	if district == nil {
		return nil, model.NewDistrictNotFoundError(districtID)
	}

	schools, err := s.locationRepo.ListSchoolsByDistrict(ctx, districtID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schools by district: %w", err)
	}
	return schoolOptions(schools), nil
}

// Counties は全ての県を返す。登録フォームの最初の選択肢に使う。
func (s *Service) Counties(ctx context.Context) ([]model.County, error) {
	counties, err := s.locationRepo.ListCounties(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list counties: %w", err)
	}
	return counties, nil
}

// Grades は選択可能な学年を返す。
func (s *Service) Grades(ctx context.Context) ([]model.Grade, error) {
	grades, err := s.gradeRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list grades: %w", err)
	}
	return grades, nil
}

// ActiveGrade は選択可能な学年を返す。存在しない、または選択不可の場合はnilを返す。
func (s *Service) ActiveGrade(ctx context.Context, gradeID int64) (*model.Grade, error) {
	grade, err := s.gradeRepo.FindByID(ctx, gradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to find grade: %w", err)
	}
	if grade == nil || !grade.IsActive {
		return nil, nil
	}
	return grade, nil
}

// YearOfGraduation は現在時刻を基準に学年から卒業年度を算出する。
func (s *Service) YearOfGraduation(grade *model.Grade) int {
	return grade.YearOfGraduation(s.now())
}

// GradeByYearOfGraduation は卒業年度から現在の学年を求める。
// 対応する学年がない場合はnilを返す（近い学年で代用しない）。
func (s *Service) GradeByYearOfGraduation(ctx context.Context, year int) (*model.Grade, error) {
	years := year - model.SchoolYearEnd(s.now())
	grade, err := s.gradeRepo.FindByYearsUntilGraduation(ctx, years)
	if err != nil {
		return nil, fmt.Errorf("failed to find grade by years until graduation: %w", err)
	}
	return grade, nil
}

// SchoolPlacement は学校と、その学校から導出される地区・県を返す。
// 学校が存在しない場合はnilを返す。
func (s *Service) SchoolPlacement(ctx context.Context, schoolID int64) (*Placement, error) {
	school, err := s.locationRepo.FindSchoolByID(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to find school: %w", err)
	}
	if school == nil {
		return nil, nil
	}

	district, err := s.locationRepo.FindDistrictByID(ctx, school.DistrictID)
	if err != nil {
		return nil, fmt.Errorf("failed to find district: %w", err)
	}
	if district == nil {
		return nil, fmt.Errorf("school %d references missing district %d", school.ID, school.DistrictID)
	}

	county, err := s.locationRepo.FindCountyByID(ctx, district.CountyID)
	if err != nil {
		return nil, fmt.Errorf("failed to find county: %w", err)
	}
	if county == nil {
		return nil, fmt.Errorf("district %d references missing county %d", district.ID, district.CountyID)
	}

	return &Placement{School: *school, District: *district, County: *county}, nil
}

func (s *Service) requireCounty(ctx context.Context, countyID int64) error {
	county, err := s.locationRepo.FindCountyByID(ctx, countyID)
	if err != nil {
		return fmt.Errorf("failed to find county: %w", err)
	}
	if county == nil {
		return model.NewCountyNotFoundError(countyID)
	}
	return nil
}

func schoolOptions(schools []model.School) []SchoolOption {
	options := make([]SchoolOption, 0, len(schools))
	for i := range schools {
		options = append(options, SchoolOption{Value: schools[i].ID, Label: schools[i].DisplayName()})
	}
	return options
}
