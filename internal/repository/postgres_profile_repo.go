package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/seminar/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, school_id, year_of_graduation, phone, parent_phone, gdpr, created_at, updated_at
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.ID, &p.UserID, &p.SchoolID, &p.YearOfGraduation, &p.Phone, &p.ParentPhone,
		&p.GDPR, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by user ID: %w", err)
	}
	return p, nil
}

// FindDetailByID はプロフィールを関連エンティティと結合して取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindDetailByID(ctx context.Context, id int64) (*model.ProfileDetail, error) {
	d := &model.ProfileDetail{}
	err := r.db.QueryRowContext(ctx,
		`SELECT p.id, p.user_id, p.school_id, p.year_of_graduation, p.phone, p.parent_phone, p.gdpr,
		        p.created_at, p.updated_at,
		        u.id, u.email, u.first_name, u.last_name, u.verified_email, u.created_at, u.updated_at,
		        s.id, s.name, s.abbreviation, s.street, s.city, s.zip_code, s.district_id,
		        d.id, d.name, d.abbreviation, d.county_id,
		        c.id, c.name
		 FROM profiles p
		 INNER JOIN users u ON u.id = p.user_id
		 INNER JOIN schools s ON s.id = p.school_id
		 INNER JOIN districts d ON d.id = s.district_id
		 INNER JOIN counties c ON c.id = d.county_id
		 WHERE p.id = $1`,
		id,
	).Scan(
		&d.Profile.ID, &d.Profile.UserID, &d.Profile.SchoolID, &d.Profile.YearOfGraduation,
		&d.Profile.Phone, &d.Profile.ParentPhone, &d.Profile.GDPR, &d.Profile.CreatedAt, &d.Profile.UpdatedAt,
		&d.User.ID, &d.User.Email, &d.User.FirstName, &d.User.LastName, &d.User.VerifiedEmail,
		&d.User.CreatedAt, &d.User.UpdatedAt,
		&d.School.ID, &d.School.Name, &d.School.Abbreviation, &d.School.Street, &d.School.City,
		&d.School.ZipCode, &d.School.DistrictID,
		&d.District.ID, &d.District.Name, &d.District.Abbreviation, &d.District.CountyID,
		&d.County.ID, &d.County.Name,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile detail: %w", err)
	}
	return d, nil
}

// UpdateWithUserNames はプロフィールとユーザーの氏名を同一トランザクションで更新する。
func (r *PostgresProfileRepo) UpdateWithUserNames(ctx context.Context, profile *model.Profile, firstName, lastName string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, updated_at = $4 WHERE id = $1`,
		profile.UserID, firstName, lastName, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user names: %w", err)
	}
	if err := expectOneRow(result, "user", profile.UserID); err != nil {
		return err
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE profiles
		 SET school_id = $2, year_of_graduation = $3, phone = $4, parent_phone = $5, updated_at = $6
		 WHERE id = $1`,
		profile.ID, profile.SchoolID, profile.YearOfGraduation, profile.Phone, profile.ParentPhone, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if err := expectOneRow(result, "profile", profile.ID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
