// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, location, profile, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEmailExists        = "EMAIL_EXISTS"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeProfileNotFound    = "PROFILE_NOT_FOUND"
	ErrCodeCountyNotFound     = "COUNTY_NOT_FOUND"
	ErrCodeDistrictNotFound   = "DISTRICT_NOT_FOUND"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewEmailExistsError は登録済みメールアドレスでの登録エラーを生成する。
func NewEmailExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailExists,
		Message:  "an account with this email address already exists",
		Category: "validation",
		Action:   "log in or reset your password",
	}
}

// NewInvalidCredentialsError はログイン認証失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "invalid email or password",
		Category: "auth",
		Action:   "check your input and try again",
	}
}

// NewEmailNotVerifiedError はメールアドレス未確認のままログインしようとした場合のエラーを生成する。
func NewEmailNotVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotVerified,
		Message:  "email address has not been verified",
		Category: "auth",
		Action:   "open the link in the verification email",
	}
}

// NewUnauthorizedError はログインが必要な操作を未認証で呼び出した場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "login is required",
		Category: "auth",
		Action:   "log in and try again",
	}
}

// NewInvalidTokenError は無効または期限切れのトークンエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "the link is invalid or has expired",
		Category: "auth",
		Action:   "start the process again",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "user not found",
		Category: "auth",
		Action:   "log in again",
	}
}

// NewProfileNotFoundError はプロフィールが見つからない場合のエラーを生成する。
func NewProfileNotFoundError(profileID int64) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("profile not found: %d", profileID),
		Category: "profile",
		Action:   "check the profile ID",
	}
}

// NewCountyNotFoundError は県が見つからない場合のエラーを生成する。
func NewCountyNotFoundError(countyID int64) *APIError {
	return &APIError{
		Code:     ErrCodeCountyNotFound,
		Message:  fmt.Sprintf("county not found: %d", countyID),
		Category: "location",
		Action:   "check the county ID",
	}
}

// NewDistrictNotFoundError は地区が見つからない場合のエラーを生成する。
func NewDistrictNotFoundError(districtID int64) *APIError {
	return &APIError{
		Code:     ErrCodeDistrictNotFound,
		Message:  fmt.Sprintf("district not found: %d", districtID),
		Category: "location",
		Action:   "check the district ID",
	}
}

// FieldErrors はフォーム項目ごとの検証エラーを保持する。
// キーはフォームのフィールド名。空文字列キーは項目に紐づかないエラー。
type FieldErrors map[string][]string

// NonFieldKey は特定の項目に紐づかないエラーのキー。
const NonFieldKey = ""

// Add は項目にエラーメッセージを追加する。
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Has は項目にエラーがあるかどうかを返す。
func (fe FieldErrors) Has(field string) bool {
	return len(fe[field]) > 0
}

// HasCode は項目に指定コードのエラーがあるかどうかを返す。
func (fe FieldErrors) HasCode(field, code string) bool {
	for _, c := range fe[field] {
		if c == code {
			return true
		}
	}
	return false
}

// Fields はエラーのある項目名をソートして返す。
func (fe FieldErrors) Fields() []string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// NewValidationError はFieldErrorsからValidationErrorを生成する。
func NewValidationError(fields FieldErrors) *ValidationError {
	return &ValidationError{Fields: fields}
}

// ValidationError はフォーム検証エラーを表す。
// サービス層からハンドラーへ項目別エラーを伝搬するために使う。
type ValidationError struct {
	Fields FieldErrors
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %v", ErrCodeValidationFailed, e.Fields.Fields())
}
