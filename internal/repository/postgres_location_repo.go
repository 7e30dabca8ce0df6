package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/seminar/internal/model"
)

// PostgresLocationRepo はPostgreSQLを使用した地域区分リポジトリ。
type PostgresLocationRepo struct {
	db *sql.DB
}

// NewPostgresLocationRepo はPostgresLocationRepoを生成する。
func NewPostgresLocationRepo(db *sql.DB) *PostgresLocationRepo {
	return &PostgresLocationRepo{db: db}
}

// FindCountyByID は指定IDの県を取得する。見つからない場合はnilを返す。
func (r *PostgresLocationRepo) FindCountyByID(ctx context.Context, id int64) (*model.County, error) {
	c := &model.County{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM counties WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find county: %w", err)
	}
	return c, nil
}

// ListCounties は全ての県を名前順で返す。
func (r *PostgresLocationRepo) ListCounties(ctx context.Context) ([]model.County, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM counties ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list counties: %w", err)
	}
	defer rows.Close()

	counties := []model.County{}
	for rows.Next() {
		var c model.County
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan county: %w", err)
		}
		counties = append(counties, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate counties: %w", err)
	}
	return counties, nil
}

// FindDistrictByID は指定IDの地区を取得する。見つからない場合はnilを返す。
func (r *PostgresLocationRepo) FindDistrictByID(ctx context.Context, id int64) (*model.District, error) {
	d := &model.District{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, abbreviation, county_id FROM districts WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Name, &d.Abbreviation, &d.CountyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find district: %w", err)
	}
	return d, nil
}

// ListDistrictsByCounty は県に属する地区を名前順で返す。
func (r *PostgresLocationRepo) ListDistrictsByCounty(ctx context.Context, countyID int64) ([]model.District, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, abbreviation, county_id
		 FROM districts
		 WHERE county_id = $1
		 ORDER BY name, id`,
		countyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list districts: %w", err)
	}
	defer rows.Close()

	districts := []model.District{}
	for rows.Next() {
		var d model.District
		if err := rows.Scan(&d.ID, &d.Name, &d.Abbreviation, &d.CountyID); err != nil {
			return nil, fmt.Errorf("failed to scan district: %w", err)
		}
		districts = append(districts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate districts: %w", err)
	}
	return districts, nil
}

// FindSchoolByID は指定IDの学校を取得する。見つからない場合はnilを返す。
func (r *PostgresLocationRepo) FindSchoolByID(ctx context.Context, id int64) (*model.School, error) {
	s := &model.School{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, abbreviation, street, city, zip_code, district_id FROM schools WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.Abbreviation, &s.Street, &s.City, &s.ZipCode, &s.DistrictID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find school: %w", err)
	}
	return s, nil
}

// ListSchoolsByDistrict は地区に属する学校を名前順で返す。
func (r *PostgresLocationRepo) ListSchoolsByDistrict(ctx context.Context, districtID int64) ([]model.School, error) {
	return r.listSchools(ctx,
		`SELECT id, name, abbreviation, street, city, zip_code, district_id
		 FROM schools
		 WHERE district_id = $1
		 ORDER BY name, id`,
		districtID,
	)
}

// ListSchoolsByCounty は県内のいずれかの地区に属する学校を名前順で返す。
func (r *PostgresLocationRepo) ListSchoolsByCounty(ctx context.Context, countyID int64) ([]model.School, error) {
	return r.listSchools(ctx,
		`SELECT s.id, s.name, s.abbreviation, s.street, s.city, s.zip_code, s.district_id
		 FROM schools s
		 INNER JOIN districts d ON d.id = s.district_id
		 WHERE d.county_id = $1
		 ORDER BY s.name, s.id`,
		countyID,
	)
}

func (r *PostgresLocationRepo) listSchools(ctx context.Context, query string, arg int64) ([]model.School, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list schools: %w", err)
	}
	defer rows.Close()

	schools := []model.School{}
	for rows.Next() {
		var s model.School
		if err := rows.Scan(&s.ID, &s.Name, &s.Abbreviation, &s.Street, &s.City, &s.ZipCode, &s.DistrictID); err != nil {
			return nil, fmt.Errorf("failed to scan school: %w", err)
		}
		schools = append(schools, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schools: %w", err)
	}
	return schools, nil
}

// compile-time interface check
var _ LocationRepository = (*PostgresLocationRepo)(nil)
