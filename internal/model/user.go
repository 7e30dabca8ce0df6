package model

import (
	"strings"
	"time"
)

// User はサービス利用ユーザー（アカウント）を表す。
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	VerifiedEmail bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FullName は表示用の氏名を返す。
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Profile は大会参加者としてのユーザー情報を表す。Userと1対1で紐づく。
// 地区・県はSchoolから導出するため保持しない。
type Profile struct {
	ID               int64
	UserID           string
	SchoolID         int64
	YearOfGraduation int
	Phone            string
	ParentPhone      string
	GDPR             bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProfileDetail はプロフィール詳細表示用に関連エンティティを結合したモデル。
type ProfileDetail struct {
	Profile
	User     User
	School   School
	District District
	County   County
	Grade    *Grade // 卒業年度に対応する学年が存在しない場合はnil
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
