package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/seminar/internal/auth"
	"github.com/hitoshi/seminar/internal/flash"
	"github.com/hitoshi/seminar/internal/form"
	"github.com/hitoshi/seminar/internal/locale"
	"github.com/hitoshi/seminar/internal/location"
	"github.com/hitoshi/seminar/internal/middleware"
	"github.com/hitoshi/seminar/internal/model"
	"github.com/hitoshi/seminar/internal/profile"
	"github.com/hitoshi/seminar/internal/user"
)

// --- モック定義 ---

type mockUserService struct {
	registerFn             func(ctx context.Context, l *locale.Localizer, f *user.RegistrationForm) (*model.User, error)
	verifyFn               func(ctx context.Context, uidb64, token string) bool
	requestPasswordResetFn func(ctx context.Context, l *locale.Localizer, f *user.PasswordResetRequestForm) error
	checkResetLinkFn       func(ctx context.Context, uidb64, token string) bool
	resetPasswordFn        func(ctx context.Context, uidb64, token string, f *user.SetPasswordForm) error
}

func (m *mockUserService) Register(ctx context.Context, l *locale.Localizer, f *user.RegistrationForm) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, l, f)
	}
	return &model.User{ID: "user-1", Email: f.Email}, nil
}

func (m *mockUserService) Verify(ctx context.Context, uidb64, token string) bool {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, uidb64, token)
	}
	return false
}

func (m *mockUserService) RequestPasswordReset(ctx context.Context, l *locale.Localizer, f *user.PasswordResetRequestForm) error {
	if m.requestPasswordResetFn != nil {
		return m.requestPasswordResetFn(ctx, l, f)
	}
	return nil
}

func (m *mockUserService) CheckPasswordResetLink(ctx context.Context, uidb64, token string) bool {
	if m.checkResetLinkFn != nil {
		return m.checkResetLinkFn(ctx, uidb64, token)
	}
	return false
}

func (m *mockUserService) ResetPassword(ctx context.Context, uidb64, token string, f *user.SetPasswordForm) error {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(ctx, uidb64, token, f)
	}
	return nil
}

type mockAuthService struct {
	loginFn          func(ctx context.Context, f *auth.LoginForm) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, f *auth.LoginForm) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, f)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, model.NewUserNotFoundError()
}

type mockProfileService struct {
	detailFn          func(ctx context.Context, profileID int64) (*model.ProfileDetail, error)
	initialValuesFn   func(ctx context.Context, userID string) (map[string]string, error)
	submittedValuesFn func(ctx context.Context, f *profile.UpdateForm) (map[string]string, error)
	updateFn          func(ctx context.Context, userID string, f *profile.UpdateForm) (int64, error)
	profileIDFn       func(ctx context.Context, userID string) (int64, error)
}

func (m *mockProfileService) Detail(ctx context.Context, profileID int64) (*model.ProfileDetail, error) {
	if m.detailFn != nil {
		return m.detailFn(ctx, profileID)
	}
	return nil, model.NewProfileNotFoundError(profileID)
}

func (m *mockProfileService) InitialValues(ctx context.Context, userID string) (map[string]string, error) {
	if m.initialValuesFn != nil {
		return m.initialValuesFn(ctx, userID)
	}
	return map[string]string{}, nil
}

func (m *mockProfileService) SubmittedValues(ctx context.Context, f *profile.UpdateForm) (map[string]string, error) {
	if m.submittedValuesFn != nil {
		return m.submittedValuesFn(ctx, f)
	}
	return form.Values(f), nil
}

func (m *mockProfileService) Update(ctx context.Context, userID string, f *profile.UpdateForm) (int64, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, f)
	}
	return 1, nil
}

func (m *mockProfileService) ProfileIDForUser(ctx context.Context, userID string) (int64, error) {
	if m.profileIDFn != nil {
		return m.profileIDFn(ctx, userID)
	}
	return 0, model.NewProfileNotFoundError(0)
}

// mockLocationService は県1 > 地区2 > 学校1 を返す。
type mockLocationService struct {
	districtsByCountyFn func(ctx context.Context, countyID int64) ([]location.DistrictOption, error)
	schoolsByCountyFn   func(ctx context.Context, countyID int64) ([]location.SchoolOption, error)
	schoolsByDistrictFn func(ctx context.Context, districtID int64) ([]location.SchoolOption, error)
}

func (m *mockLocationService) DistrictsByCounty(ctx context.Context, countyID int64) ([]location.DistrictOption, error) {
	if m.districtsByCountyFn != nil {
		return m.districtsByCountyFn(ctx, countyID)
	}
	if countyID != 1 {
		return nil, model.NewCountyNotFoundError(countyID)
	}
	return []location.DistrictOption{{PK: 2, Name: "Bratislava II"}}, nil
}

func (m *mockLocationService) SchoolsByCounty(ctx context.Context, countyID int64) ([]location.SchoolOption, error) {
	if m.schoolsByCountyFn != nil {
		return m.schoolsByCountyFn(ctx, countyID)
	}
	if countyID != 1 {
		return nil, model.NewCountyNotFoundError(countyID)
	}
	return []location.SchoolOption{{Value: 1, Label: "Gymnázium Jura Hronca, Novohradská 3, Bratislava"}}, nil
}

func (m *mockLocationService) SchoolsByDistrict(ctx context.Context, districtID int64) ([]location.SchoolOption, error) {
	if m.schoolsByDistrictFn != nil {
		return m.schoolsByDistrictFn(ctx, districtID)
	}
	if districtID != 2 {
		return nil, model.NewDistrictNotFoundError(districtID)
	}
	return []location.SchoolOption{{Value: 1, Label: "Gymnázium Jura Hronca, Novohradská 3, Bratislava"}}, nil
}

func (m *mockLocationService) Counties(ctx context.Context) ([]model.County, error) {
	return []model.County{{ID: 1, Name: "Bratislavský"}, {ID: 2, Name: "Trnavský"}}, nil
}

func (m *mockLocationService) Grades(ctx context.Context) ([]model.Grade, error) {
	return []model.Grade{
		{ID: 1, Name: "1. ročník", YearsUntilGraduation: 3, IsActive: true},
		{ID: 2, Name: "2. ročník", YearsUntilGraduation: 2, IsActive: true},
	}, nil
}

func (m *mockLocationService) SchoolPlacement(ctx context.Context, schoolID int64) (*location.Placement, error) {
	if schoolID != 1 {
		return nil, nil
	}
	return &location.Placement{
		School:   model.School{ID: 1, Name: "Gymnázium Jura Hronca", DistrictID: 2},
		District: model.District{ID: 2, Name: "Bratislava II", CountyID: 1},
		County:   model.County{ID: 1, Name: "Bratislavský"},
	}, nil
}

type mockLoginRecorder struct {
	results []string
}

func (m *mockLoginRecorder) RecordLogin(result string) {
	m.results = append(m.results, result)
}

// --- テストヘルパー ---

const testFlashSecret = "test-flash-secret"

func newTestFlashStore() *flash.Store {
	return flash.NewStore(flash.Config{Secret: testFlashSecret})
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	rd, err := NewRenderer(newTestFlashStore())
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	return rd
}

func newTestBundle(t *testing.T) *locale.Bundle {
	t.Helper()
	bundle, err := locale.NewBundle("en")
	if err != nil {
		t.Fatalf("failed to load translations: %v", err)
	}
	return bundle
}

// newRequest は英語のLocalizerを設定したリクエストを生成する。
func newRequest(t *testing.T, method, target string, form url.Values) *http.Request {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	l := newTestBundle(t).Localizer("en")
	return req.WithContext(locale.ContextWithLocalizer(req.Context(), l))
}

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withSession はテスト用にリクエストコンテキストにセッションを注入するヘルパー。
func withSession(r *http.Request, session *model.Session) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), session))
}

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// flashesFrom はレスポンスのCookieに書き込まれたフラッシュメッセージのIDを返す。
func flashesFrom(t *testing.T, resp *http.Response) []string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range resp.Cookies() {
		if c.Name == flash.CookieName && c.Value != "" {
			req.AddCookie(c)
		}
	}
	var ids []string
	for _, m := range newTestFlashStore().Pop(httptest.NewRecorder(), req) {
		ids = append(ids, m.ID)
	}
	return ids
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Errorf("status = %d, want %d", resp.StatusCode, want)
	}
}

func assertRedirect(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}
	if loc := resp.Header.Get("Location"); loc != want {
		t.Errorf("Location = %q, want %q", loc, want)
	}
}

func assertFlash(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	ids := flashesFrom(t, resp)
	for _, id := range ids {
		if id == want {
			return
		}
	}
	t.Errorf("flash %q not found in %v", want, ids)
}

func assertBodyContains(t *testing.T, body string, substrings ...string) {
	t.Helper()
	for _, s := range substrings {
		if !strings.Contains(body, s) {
			t.Errorf("body does not contain %q", s)
		}
	}
}
