package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/seminar/internal/location"
	"github.com/hitoshi/seminar/internal/middleware"
	"github.com/hitoshi/seminar/internal/model"
)

// LocationServiceInterface は地域の参照に必要なサービスインターフェース。
// location.Serviceが満たす。
type LocationServiceInterface interface {
	DistrictsByCounty(ctx context.Context, countyID int64) ([]location.DistrictOption, error)
	SchoolsByCounty(ctx context.Context, countyID int64) ([]location.SchoolOption, error)
	SchoolsByDistrict(ctx context.Context, districtID int64) ([]location.SchoolOption, error)
	Counties(ctx context.Context) ([]model.County, error)
	Grades(ctx context.Context) ([]model.Grade, error)
	SchoolPlacement(ctx context.Context, schoolID int64) (*location.Placement, error)
}

// LocationHandler は県・地区・学校の連動選択用JSONエンドポイント。
type LocationHandler struct {
	service LocationServiceInterface
}

// NewLocationHandler はLocationHandlerを生成する。
func NewLocationHandler(service LocationServiceInterface) *LocationHandler {
	return &LocationHandler{service: service}
}

// DistrictsByCounty は県に属する地区を返す。
// GET /ajax/counties/{pk}/districts
func (h *LocationHandler) DistrictsByCounty(w http.ResponseWriter, r *http.Request) {
	pk, ok := parsePK(chi.URLParam(r, "pk"))
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewCountyNotFoundError(0))
		return
	}

	districts, err := h.service.DistrictsByCounty(r.Context(), pk)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, districts)
}

// SchoolsByCounty は県内の全地区の学校を返す。
// GET /ajax/counties/{pk}/schools
func (h *LocationHandler) SchoolsByCounty(w http.ResponseWriter, r *http.Request) {
	pk, ok := parsePK(chi.URLParam(r, "pk"))
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewCountyNotFoundError(0))
		return
	}

	schools, err := h.service.SchoolsByCounty(r.Context(), pk)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schools)
}

// SchoolsByDistrict は地区に属する学校を返す。
// GET /ajax/districts/{pk}/schools
func (h *LocationHandler) SchoolsByDistrict(w http.ResponseWriter, r *http.Request) {
	pk, ok := parsePK(chi.URLParam(r, "pk"))
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewDistrictNotFoundError(0))
		return
	}

	schools, err := h.service.SchoolsByDistrict(r.Context(), pk)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schools)
}

// locationChoices は県・地区・学校・学年の選択肢。
type locationChoices struct {
	Counties  []model.County
	Districts []location.DistrictOption
	Schools   []location.SchoolOption
	Grades    []model.Grade
}

// loadChoices はフォームの値に応じた選択肢を読み込む。
// 地区・学校の選択肢は県・地区が選ばれている場合のみ読み込む。
func loadChoices(ctx context.Context, service LocationServiceInterface, values map[string]string) (*locationChoices, error) {
	counties, err := service.Counties(ctx)
	if err != nil {
		return nil, err
	}
	grades, err := service.Grades(ctx)
	if err != nil {
		return nil, err
	}
	choices := &locationChoices{
		Counties:  counties,
		Districts: []location.DistrictOption{},
		Schools:   []location.SchoolOption{},
		Grades:    grades,
	}

	if countyID, ok := parsePK(values["county"]); ok {
		districts, err := service.DistrictsByCounty(ctx, countyID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if districts != nil {
			choices.Districts = districts
		}
	}
	if districtID, ok := parsePK(values["district"]); ok {
		schools, err := service.SchoolsByDistrict(ctx, districtID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if schools != nil {
			choices.Schools = schools
		}
	}
	return choices, nil
}

// withPlacement は学校から県・地区を導出してvaluesに設定する。
// 学校が存在しない場合は何もしない。
func withPlacement(ctx context.Context, service LocationServiceInterface, values map[string]string) error {
	schoolID, ok := parsePK(values["school"])
	if !ok {
		return nil
	}
	placement, err := service.SchoolPlacement(ctx, schoolID)
	if err != nil {
		return err
	}
	if placement == nil {
		return nil
	}
	values["county"] = formatPK(placement.County.ID)
	values["district"] = formatPK(placement.District.ID)
	return nil
}
