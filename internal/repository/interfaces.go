// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/seminar/internal/model"
)

// ErrDuplicateEmail は登録済みのメールアドレスでユーザーを作成しようとした場合に返る。
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字は区別しない。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithProfile はユーザーとプロフィールを同一トランザクションで作成する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	// 成功時はprofile.IDに採番されたIDを設定する。
	CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error

	// MarkEmailVerified はユーザーのメールアドレスを確認済みにする。
	MarkEmailVerified(ctx context.Context, id string) error

	// UpdatePassword はユーザーのパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// FindDetailByID はプロフィールをユーザー・学校・地区・県と結合して取得する。
	// Gradeは設定しない。見つからない場合はnilを返す。
	FindDetailByID(ctx context.Context, id int64) (*model.ProfileDetail, error)

	// UpdateWithUserNames はプロフィールとユーザーの氏名を同一トランザクションで更新する。
	UpdateWithUserNames(ctx context.Context, profile *model.Profile, firstName, lastName string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// LocationRepository は県・地区・学校の参照インターフェース。
// 一覧系は該当なしの場合に空スライスを返す。
type LocationRepository interface {
	// FindCountyByID は指定IDの県を取得する。見つからない場合はnilを返す。
	FindCountyByID(ctx context.Context, id int64) (*model.County, error)
	// ListCounties は全ての県を名前順で返す。
	ListCounties(ctx context.Context) ([]model.County, error)

	// FindDistrictByID は指定IDの地区を取得する。見つからない場合はnilを返す。
	FindDistrictByID(ctx context.Context, id int64) (*model.District, error)
	// ListDistrictsByCounty は県に属する地区を名前順で返す。
	ListDistrictsByCounty(ctx context.Context, countyID int64) ([]model.District, error)

	// FindSchoolByID は指定IDの学校を取得する。見つからない場合はnilを返す。
	FindSchoolByID(ctx context.Context, id int64) (*model.School, error)
	// ListSchoolsByDistrict は地区に属する学校を名前順で返す。
	ListSchoolsByDistrict(ctx context.Context, districtID int64) ([]model.School, error)
	// ListSchoolsByCounty は県内のいずれかの地区に属する学校を名前順で返す。
	ListSchoolsByCounty(ctx context.Context, countyID int64) ([]model.School, error)
}

// GradeRepository は学年の参照インターフェース。
type GradeRepository interface {
	// FindByID は指定IDの学年を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Grade, error)
	// FindByYearsUntilGraduation は卒業までの残り年数に対応する学年を取得する。
	// 見つからない場合はnilを返す。
	FindByYearsUntilGraduation(ctx context.Context, years int) (*model.Grade, error)
	// ListActive は選択可能な学年を卒業までの残り年数の降順で返す。
	ListActive(ctx context.Context) ([]model.Grade, error)
}
