// Package form はHTMLフォームの値を構造体へ読み込み、検証する。
//
// 構造体のフィールドは `form:"name"` タグでフォーム項目と対応付け、
// `validate` タグ（go-playground/validator）で検証規則を指定する。
// 検証結果はmodel.FieldErrorsとして項目名ごとのエラーコードで返す。
package form

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/hitoshi/seminar/internal/model"
)

// エラーコード。テンプレートでは "form.error.<code>" のメッセージIDで表示する。
const (
	CodeRequired           = "required"
	CodeInvalid            = "invalid"
	CodeInvalidChoice      = "invalid_choice"
	CodeEmail              = "email"
	CodeMax                = "max"
	CodeMin                = "min"
	CodePassword           = "password"
	CodePasswordMismatch   = "password_mismatch"
	CodePhone              = "phone"
	CodeUnique             = "unique"
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailNotVerified   = "email_not_verified"
)

// maxMemory はmultipartフォームの解析時にメモリに保持する上限。
const maxMemory = 1 << 20

// Decode はリクエストのフォーム値をdstに読み込む。
// dstは構造体へのポインタでなければならない。
// 数値として解釈できない値は項目エラー（CodeInvalid）として返し、フィールドはゼロ値のままにする。
func Decode(r *http.Request, dst any) (model.FieldErrors, error) {
	if err := parse(r); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("form: destination must be a pointer to struct, got %T", dst)
	}

	fieldErrs := model.FieldErrors{}
	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		name := fieldName(sf)
		if name == "" {
			continue
		}

		raw := strings.TrimSpace(r.PostForm.Get(name))
		if err := setValue(rv.Field(i), raw); err != nil {
			fieldErrs.Add(name, CodeInvalid)
		}
	}

	if len(fieldErrs) == 0 {
		return nil, nil
	}
	return fieldErrs, nil
}

func parse(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err := r.ParseMultipartForm(maxMemory)
		if err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return err
		}
		return nil
	}
	return r.ParseForm()
}

// fieldName は構造体フィールドに対応するフォーム項目名を返す。
// タグがない、または "-" の場合は空文字列を返す。
func fieldName(sf reflect.StructField) string {
	if !sf.IsExported() {
		return ""
	}
	tag := sf.Tag.Get("form")
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func setValue(v reflect.Value, raw string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		v.SetBool(parseBool(raw))
	case reflect.Int, reflect.Int32, reflect.Int64:
		if raw == "" {
			v.SetInt(0)
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	default:
		return fmt.Errorf("form: unsupported field kind %s", v.Kind())
	}
	return nil
}

// parseBool はチェックボックスの値を解釈する。
// ブラウザは未チェックの項目を送信しないため、空文字列はfalseになる。
func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "on", "true", "1", "yes", "checked":
		return true
	}
	return false
}

// Values はフォーム構造体を再表示用の項目名→文字列のマップに変換する。
// 数値のゼロ値は空文字列になる。
func Values(src any) map[string]string {
	values := map[string]string{}
	rv := reflect.Indirect(reflect.ValueOf(src))
	if rv.Kind() != reflect.Struct {
		return values
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		name := fieldName(rt.Field(i))
		if name == "" {
			continue
		}
		f := rv.Field(i)
		switch f.Kind() {
		case reflect.String:
			values[name] = f.String()
		case reflect.Bool:
			if f.Bool() {
				values[name] = "on"
			}
		case reflect.Int, reflect.Int32, reflect.Int64:
			if n := f.Int(); n != 0 {
				values[name] = strconv.FormatInt(n, 10)
			}
		}
	}
	return values
}
