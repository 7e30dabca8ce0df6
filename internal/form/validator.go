package form

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/seminar/internal/model"
)

// phonePattern は電話番号として受け付ける形式。先頭の+と数字・空白のみ。
var phonePattern = regexp.MustCompile(`^\+?[0-9 ]{9,20}$`)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 8

// MaxPasswordBytes はパスワードの最大バイト数。bcryptは72バイトを超える入力を受け付けない。
const MaxPasswordBytes = 72

// Validator はフォーム構造体の検証器。
type Validator struct {
	validate *validator.Validate
}

// NewValidator は独自規則（phone, password）を登録したValidatorを生成する。
func NewValidator() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(sf reflect.StructField) string {
		return fieldName(sf)
	})

	v := &Validator{validate: validate}
	v.registerRules()
	return v
}

func (v *Validator) registerRules() {
	// 電話番号: 空は許可（必須かどうかはrequiredで指定する）
	v.validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || phonePattern.MatchString(s)
	})

	// パスワード: 最小文字数と最大バイト数を満たし、数字のみではないこと
	v.validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return IsAcceptablePassword(fl.Field().String())
	})
}

// IsAcceptablePassword はパスワードが強度条件を満たすかどうかを返す。
func IsAcceptablePassword(password string) bool {
	if len([]rune(password)) < MinPasswordLength || len(password) > MaxPasswordBytes {
		return false
	}
	return strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0
}

// Struct は構造体を検証し、項目ごとのエラーコードを返す。エラーがなければnilを返す。
func (v *Validator) Struct(s any) model.FieldErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs := model.FieldErrors{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fieldErrs.Add(model.NonFieldKey, CodeInvalid)
		return fieldErrs
	}
	for _, fe := range verrs {
		fieldErrs.Add(fe.Field(), codeFor(fe.Tag()))
	}
	return fieldErrs
}

// codeFor はvalidatorのタグ名をエラーコードに変換する。
func codeFor(tag string) string {
	switch tag {
	case "required":
		return CodeRequired
	case "email":
		return CodeEmail
	case "max":
		return CodeMax
	case "min":
		return CodeMin
	case "eqfield":
		return CodePasswordMismatch
	case "password":
		return CodePassword
	case "phone":
		return CodePhone
	default:
		return CodeInvalid
	}
}

// Merge はsrcの項目エラーをdstに追加する。
// dstで既にエラーのある項目は追加しない。
func Merge(dst, src model.FieldErrors) model.FieldErrors {
	if dst == nil {
		dst = model.FieldErrors{}
	}
	for field, codes := range src {
		if dst.Has(field) {
			continue
		}
		for _, c := range codes {
			dst.Add(field, c)
		}
	}
	return dst
}
