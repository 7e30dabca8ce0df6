package location

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/seminar/internal/model"
)

// --- モック定義 ---

type mockLocationRepo struct {
	findCountyByIDFn        func(ctx context.Context, id int64) (*model.County, error)
	listCountiesFn          func(ctx context.Context) ([]model.County, error)
	findDistrictByIDFn      func(ctx context.Context, id int64) (*model.District, error)
	listDistrictsByCountyFn func(ctx context.Context, countyID int64) ([]model.District, error)
	findSchoolByIDFn        func(ctx context.Context, id int64) (*model.School, error)
	listSchoolsByDistrictFn func(ctx context.Context, districtID int64) ([]model.School, error)
	listSchoolsByCountyFn   func(ctx context.Context, countyID int64) ([]model.School, error)
}

func (m *mockLocationRepo) FindCountyByID(ctx context.Context, id int64) (*model.County, error) {
	if m.findCountyByIDFn != nil {
		return m.findCountyByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockLocationRepo) ListCounties(ctx context.Context) ([]model.County, error) {
	if m.listCountiesFn != nil {
		return m.listCountiesFn(ctx)
	}
	return []model.County{}, nil
}

func (m *mockLocationRepo) FindDistrictByID(ctx context.Context, id int64) (*model.District, error) {
	if m.findDistrictByIDFn != nil {
		return m.findDistrictByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockLocationRepo) ListDistrictsByCounty(ctx context.Context, countyID int64) ([]model.District, error) {
	if m.listDistrictsByCountyFn != nil {
		return m.listDistrictsByCountyFn(ctx, countyID)
	}
	return []model.District{}, nil
}

func (m *mockLocationRepo) FindSchoolByID(ctx context.Context, id int64) (*model.School, error) {
	if m.findSchoolByIDFn != nil {
		return m.findSchoolByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockLocationRepo) ListSchoolsByDistrict(ctx context.Context, districtID int64) ([]model.School, error) {
	if m.listSchoolsByDistrictFn != nil {
		return m.listSchoolsByDistrictFn(ctx, districtID)
	}
	return []model.School{}, nil
}

func (m *mockLocationRepo) ListSchoolsByCounty(ctx context.Context, countyID int64) ([]model.School, error) {
	if m.listSchoolsByCountyFn != nil {
		return m.listSchoolsByCountyFn(ctx, countyID)
	}
	return []model.School{}, nil
}

type mockGradeRepo struct {
	findByIDFn                   func(ctx context.Context, id int64) (*model.Grade, error)
	findByYearsUntilGraduationFn func(ctx context.Context, years int) (*model.Grade, error)
	listActiveFn                 func(ctx context.Context) ([]model.Grade, error)
}

func (m *mockGradeRepo) FindByID(ctx context.Context, id int64) (*model.Grade, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockGradeRepo) FindByYearsUntilGraduation(ctx context.Context, years int) (*model.Grade, error) {
	if m.findByYearsUntilGraduationFn != nil {
		return m.findByYearsUntilGraduationFn(ctx, years)
	}
	return nil, nil
}

func (m *mockGradeRepo) ListActive(ctx context.Context) ([]model.Grade, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return []model.Grade{}, nil
}

// countyExists は指定IDの県だけが存在するFindCountyByIDを返す。
func countyExists(id int64) func(ctx context.Context, got int64) (*model.County, error) {
	return func(ctx context.Context, got int64) (*model.County, error) {
		if got == id {
			return &model.County{ID: id, Name: "Bratislavský"}, nil
		}
		return nil, nil
	}
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %q, want %q", apiErr.Code, code)
	}
}

// --- DistrictsByCounty ---

func TestDistrictsByCounty_ReturnsOptions(t *testing.T) {
	repo := &mockLocationRepo{
		findCountyByIDFn: countyExists(1),
		listDistrictsByCountyFn: func(ctx context.Context, countyID int64) ([]model.District, error) {
			if countyID != 1 {
				t.Errorf("countyID = %d, want 1", countyID)
			}
			return []model.District{
				{ID: 2, Name: "Bratislava I", CountyID: 1},
				{ID: 3, Name: "Malacky", CountyID: 1},
			}, nil
		},
	}
	svc := NewService(repo, &mockGradeRepo{})

	got, err := svc.DistrictsByCounty(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []DistrictOption{{PK: 2, Name: "Bratislava I"}, {PK: 3, Name: "Malacky"}}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDistrictsByCounty_JSONShape(t *testing.T) {
	repo := &mockLocationRepo{
		findCountyByIDFn: countyExists(1),
		listDistrictsByCountyFn: func(ctx context.Context, countyID int64) ([]model.District, error) {
			return []model.District{{ID: 7, Name: "Senec"}}, nil
		},
	}
	svc := NewService(repo, &mockGradeRepo{})

	got, _ := svc.DistrictsByCounty(context.Background(), 1)
	b, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(b) != `[{"pk":7,"name":"Senec"}]` {
		t.Errorf("json = %s", b)
	}
}

func TestDistrictsByCounty_EmptyIsNotNil(t *testing.T) {
	repo := &mockLocationRepo{findCountyByIDFn: countyExists(1)}
	svc := NewService(repo, &mockGradeRepo{})

	got, err := svc.DistrictsByCounty(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := json.Marshal(got)
	if string(b) != "[]" {
		t.Errorf("json = %s, want []", b)
	}
}

func TestDistrictsByCounty_UnknownCounty_ReturnsNotFound(t *testing.T) {
	listCalled := false
	repo := &mockLocationRepo{
		listDistrictsByCountyFn: func(ctx context.Context, countyID int64) ([]model.District, error) {
			listCalled = true
			return nil, nil
		},
	}
	svc := NewService(repo, &mockGradeRepo{})

	_, err := svc.DistrictsByCounty(context.Background(), 999)
	assertAPIErrorCode(t, err, model.ErrCodeCountyNotFound)
	if listCalled {
		t.Error("districts should not be listed for unknown county")
	}
}

func TestDistrictsByCounty_RepositoryError_IsWrapped(t *testing.T) {
	dbErr := errors.New("connection reset")
	repo := &mockLocationRepo{
		findCountyByIDFn: func(ctx context.Context, id int64) (*model.County, error) {
			return nil, dbErr
		},
	}
	svc := NewService(repo, &mockGradeRepo{})

	_, err := svc.DistrictsByCounty(context.Background(), 1)
	if !errors.Is(err, dbErr) {
		t.Errorf("error = %v, want wrapped %v", err, dbErr)
	}
}

// --- SchoolsByCounty / SchoolsByDistrict ---

func TestSchoolsByCounty_UsesDisplayNameAsLabel(t *testing.T) {
	repo := &mockLocationRepo{
		findCountyByIDFn: countyExists(1),
		listSchoolsByCountyFn: func(ctx context.Context, countyID int64) ([]model.School, error) {
			return []model.School{
				{ID: 1, Name: "Gymnázium Jura Hronca", Street: "Novohradská 3", City: "Bratislava"},
				{ID: 2, Name: "Spojená škola", City: "Malacky"},
			}, nil
		},
	}
	svc := NewService(repo, &mockGradeRepo{})

	got, err := svc.SchoolsByCounty(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []SchoolOption{
		{Value: 1, Label: "Gymnázium Jura Hronca, Novohradská 3, Bratislava"},
		{Value: 2, Label: "Spojená škola, Malacky"},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	b, _ := json.Marshal(got[:1])
	if string(b) != `[{"value":1,"label":"Gymnázium Jura Hronca, Novohradská 3, Bratislava"}]` {
		t.Errorf("json = %s", b)
	}
}

func TestSchoolsByCounty_UnknownCounty_ReturnsNotFound(t *testing.T) {
	svc := NewService(&mockLocationRepo{}, &mockGradeRepo{})

	_, err := svc.SchoolsByCounty(context.Background(), 42)
	assertAPIErrorCode(t, err, model.ErrCodeCountyNotFound)
}

func TestSchoolsByDistrict_ReturnsOptions(t *testing.T) {
	repo := &mockLocationRepo{
		findDistrictByIDFn: func(ctx context.Context, id int64) (*model.District, error) {
			return &model.District{ID: id, Name: "Malacky", CountyID: 1}, nil
		},
		listSchoolsByDistrictFn: func(ctx context.Context, districtID int64) ([]model.School, error) {
			if districtID != 3 {
				t.Errorf("districtID = %d, want 3", districtID)
			}
			return []model.School{{ID: 3, Name: "ZŠ Štúrova", City: "Malacky"}}, nil
		},
	}
	svc := NewService(repo, &mockGradeRepo{})

	got, err := svc.SchoolsByDistrict(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Value != 3 || got[0].Label != "ZŠ Štúrova, Malacky" {
		t.Errorf("got = %+v", got)
	}
}

func TestSchoolsByDistrict_UnknownDistrict_ReturnsNotFound(t *testing.T) {
	svc := NewService(&mockLocationRepo{}, &mockGradeRepo{})

	_, err := svc.SchoolsByDistrict(context.Background(), 42)
	assertAPIErrorCode(t, err, model.ErrCodeDistrictNotFound)
}

func TestSchoolsByDistrict_Empty_ReturnsEmptySlice(t *testing.T) {
	repo := &mockLocationRepo{
		findDistrictByIDFn: func(ctx context.Context, id int64) (*model.District, error) {
			return &model.District{ID: id}, nil
		},
	}
	svc := NewService(repo, &mockGradeRepo{})

	got, err := svc.SchoolsByDistrict(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got = %#v, want empty non-nil slice", got)
	}
}

// --- 学年 ---

func TestGradeByYearOfGraduation_ComputesYearsFromSchoolYear(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		year      int
		wantYears int
	}{
		{name: "before September", now: time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), year: 2028, wantYears: 2},
		{name: "from September", now: time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), year: 2028, wantYears: 1},
		{name: "graduating this school year", now: time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC), year: 2027, wantYears: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotYears int
			grades := &mockGradeRepo{
				findByYearsUntilGraduationFn: func(ctx context.Context, years int) (*model.Grade, error) {
					gotYears = years
					return &model.Grade{ID: 1, YearsUntilGraduation: years}, nil
				},
			}
			svc := NewService(&mockLocationRepo{}, grades)
			svc.SetNowFunc(func() time.Time { return tt.now })

			if _, err := svc.GradeByYearOfGraduation(context.Background(), tt.year); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotYears != tt.wantYears {
				t.Errorf("years = %d, want %d", gotYears, tt.wantYears)
			}
		})
	}
}

func TestGradeByYearOfGraduation_NoMatch_ReturnsNil(t *testing.T) {
	svc := NewService(&mockLocationRepo{}, &mockGradeRepo{})

	grade, err := svc.GradeByYearOfGraduation(context.Background(), 1990)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if grade != nil {
		t.Errorf("grade = %+v, want nil", grade)
	}
}

func TestYearOfGraduation_RoundTripsWithGradeLookup(t *testing.T) {
	now := time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)
	grade := &model.Grade{ID: 2, Name: "2. ročník", YearsUntilGraduation: 2, IsActive: true}

	grades := &mockGradeRepo{
		findByYearsUntilGraduationFn: func(ctx context.Context, years int) (*model.Grade, error) {
			if years == grade.YearsUntilGraduation {
				return grade, nil
			}
			return nil, nil
		},
	}
	svc := NewService(&mockLocationRepo{}, grades)
	svc.SetNowFunc(func() time.Time { return now })

	year := svc.YearOfGraduation(grade)
	if year != 2029 {
		t.Fatalf("YearOfGraduation = %d, want 2029", year)
	}

	got, err := svc.GradeByYearOfGraduation(context.Background(), year)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != grade.ID {
		t.Errorf("round trip grade = %+v, want ID %d", got, grade.ID)
	}
}

func TestActiveGrade(t *testing.T) {
	grades := &mockGradeRepo{
		findByIDFn: func(ctx context.Context, id int64) (*model.Grade, error) {
			switch id {
			case 1:
				return &model.Grade{ID: 1, IsActive: true}, nil
			case 5:
				return &model.Grade{ID: 5, IsActive: false}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(&mockLocationRepo{}, grades)

	tests := []struct {
		id     int64
		wantOK bool
	}{
		{id: 1, wantOK: true},
		{id: 5, wantOK: false},
		{id: 99, wantOK: false},
	}
	for _, tt := range tests {
		g, err := svc.ActiveGrade(context.Background(), tt.id)
		if err != nil {
			t.Fatalf("id %d: unexpected error: %v", tt.id, err)
		}
		if (g != nil) != tt.wantOK {
			t.Errorf("id %d: grade = %+v, wantOK %v", tt.id, g, tt.wantOK)
		}
	}
}

// --- SchoolPlacement ---

func TestSchoolPlacement_DerivesDistrictAndCounty(t *testing.T) {
	repo := &mockLocationRepo{
		findSchoolByIDFn: func(ctx context.Context, id int64) (*model.School, error) {
			return &model.School{ID: id, Name: "Gymnázium", DistrictID: 4}, nil
		},
		findDistrictByIDFn: func(ctx context.Context, id int64) (*model.District, error) {
			return &model.District{ID: id, Name: "Trnava", CountyID: 2}, nil
		},
		findCountyByIDFn: func(ctx context.Context, id int64) (*model.County, error) {
			return &model.County{ID: id, Name: "Trnavský"}, nil
		},
	}
	svc := NewService(repo, &mockGradeRepo{})

	p, err := svc.SchoolPlacement(context.Background(), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.School.ID != 4 || p.District.ID != 4 || p.County.ID != 2 {
		t.Errorf("placement = %+v", p)
	}
}

func TestSchoolPlacement_UnknownSchool_ReturnsNil(t *testing.T) {
	svc := NewService(&mockLocationRepo{}, &mockGradeRepo{})

	p, err := svc.SchoolPlacement(context.Background(), 404)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("placement = %+v, want nil", p)
	}
}
