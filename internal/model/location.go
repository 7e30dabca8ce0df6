package model

import (
	"strings"
	"time"
)

// County は県（最上位の地域区分）を表す。
type County struct {
	ID   int64
	Name string
}

// District は県に属する地区を表す。
type District struct {
	ID           int64
	Name         string
	Abbreviation string
	CountyID     int64
}

// School は地区に属する学校を表す。
type School struct {
	ID           int64
	Name         string
	Abbreviation string
	Street       string
	City         string
	ZipCode      string
	DistrictID   int64
}

// DisplayName は選択肢や詳細画面に表示する学校名を返す。
// 空の項目は省略する。
func (s *School) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.Name, s.Street, s.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Grade は学年を表す。卒業までの残り年数で卒業年度と対応付ける。
type Grade struct {
	ID                   int64
	Name                 string
	Tag                  string
	YearsUntilGraduation int
	IsActive             bool
}

// SchoolYearEnd は指定時刻が属する学校年度の終了年を返す。
// 学校年度は9月に始まる。
func SchoolYearEnd(t time.Time) int {
	if t.Month() >= time.September {
		return t.Year() + 1
	}
	return t.Year()
}

// YearOfGraduation は学年と基準時刻から卒業年度を算出する。
func (g *Grade) YearOfGraduation(now time.Time) int {
	return SchoolYearEnd(now) + g.YearsUntilGraduation
}
