package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/seminar/internal/model"
)

// PostgresGradeRepo はPostgreSQLを使用した学年リポジトリ。
type PostgresGradeRepo struct {
	db *sql.DB
}

// NewPostgresGradeRepo はPostgresGradeRepoを生成する。
func NewPostgresGradeRepo(db *sql.DB) *PostgresGradeRepo {
	return &PostgresGradeRepo{db: db}
}

// FindByID は指定IDの学年を取得する。見つからない場合はnilを返す。
func (r *PostgresGradeRepo) FindByID(ctx context.Context, id int64) (*model.Grade, error) {
	return r.findOne(ctx,
		`SELECT id, name, tag, years_until_graduation, is_active FROM grades WHERE id = $1`,
		id,
	)
}

// FindByYearsUntilGraduation は卒業までの残り年数に対応する学年を取得する。
// 同じ残り年数の学年が複数ある場合は有効なものを優先する。
func (r *PostgresGradeRepo) FindByYearsUntilGraduation(ctx context.Context, years int) (*model.Grade, error) {
	return r.findOne(ctx,
		`SELECT id, name, tag, years_until_graduation, is_active
		 FROM grades
		 WHERE years_until_graduation = $1
		 ORDER BY is_active DESC, id
		 LIMIT 1`,
		years,
	)
}

func (r *PostgresGradeRepo) findOne(ctx context.Context, query string, arg any) (*model.Grade, error) {
	g := &model.Grade{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&g.ID, &g.Name, &g.Tag, &g.YearsUntilGraduation, &g.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find grade: %w", err)
	}
	return g, nil
}

// ListActive は選択可能な学年を卒業までの残り年数の降順で返す。
func (r *PostgresGradeRepo) ListActive(ctx context.Context) ([]model.Grade, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, tag, years_until_graduation, is_active
		 FROM grades
		 WHERE is_active
		 ORDER BY years_until_graduation DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list grades: %w", err)
	}
	defer rows.Close()

	grades := []model.Grade{}
	for rows.Next() {
		var g model.Grade
		if err := rows.Scan(&g.ID, &g.Name, &g.Tag, &g.YearsUntilGraduation, &g.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan grade: %w", err)
		}
		grades = append(grades, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grades: %w", err)
	}
	return grades, nil
}

// compile-time interface check
var _ GradeRepository = (*PostgresGradeRepo)(nil)
