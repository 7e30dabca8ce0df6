// Package token はメールアドレス確認とパスワード再設定のリンクに埋め込む
// 署名付きトークンを生成・検証する。
//
// トークンはHS256のJWTで、対象ユーザーの状態のフィンガープリントを含む。
// 確認済みフラグやパスワードハッシュが変わるとフィンガープリントが一致しなくなるため、
// 一度使われたトークンは再び有効にならない。
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/seminar/internal/model"
)

// Purpose はトークンの用途を表す。用途が異なるトークンは互いに検証を通らない。
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// fingerprintLength はクレームに含めるフィンガープリントの16進文字数。
const fingerprintLength = 32

// ErrInvalidUID はuidb64のデコードに失敗した場合に返る。
var ErrInvalidUID = errors.New("invalid uidb64")

// Claims はトークンに含めるクレーム。
type Claims struct {
	jwt.RegisteredClaims
	Purpose     Purpose `json:"purpose"`
	Fingerprint string  `json:"fp"`
}

// Generator は用途ごとのトークン生成・検証器。
type Generator struct {
	secret  []byte
	ttl     time.Duration
	purpose Purpose
	now     func() time.Time
}

// NewGenerator はGeneratorを生成する。
func NewGenerator(secret string, ttl time.Duration, purpose Purpose) *Generator {
	return &Generator{
		secret:  []byte(secret),
		ttl:     ttl,
		purpose: purpose,
		now:     time.Now,
	}
}

// SetNowFunc はテスト用に現在時刻の取得関数を差し替える。
func (g *Generator) SetNowFunc(fn func() time.Time) {
	g.now = fn
}

// Purpose はGeneratorの用途を返す。
func (g *Generator) Purpose() Purpose {
	return g.purpose
}

// Make はユーザーの現在の状態に対するトークンを生成する。
func (g *Generator) Make(user *model.User) (string, error) {
	now := g.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
		Purpose:     g.purpose,
		Fingerprint: g.fingerprint(user),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Check はトークンがユーザーの現在の状態に対して有効かどうかを返す。
// userがnilの場合は常にfalseを返す。
func (g *Generator) Check(user *model.User, tokenString string) bool {
	if user == nil || tokenString == "" {
		return false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(user.ID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !token.Valid {
		return false
	}

	if claims.Purpose != g.purpose {
		return false
	}
	return hmac.Equal([]byte(claims.Fingerprint), []byte(g.fingerprint(user)))
}

// fingerprint はトークンの使用で変化するユーザー状態のハッシュを返す。
func (g *Generator) fingerprint(user *model.User) string {
	var state string
	switch g.purpose {
	case PurposePasswordReset:
		state = user.ID + "|" + user.PasswordHash
	default:
		state = user.ID + "|" + strconv.FormatBool(user.VerifiedEmail) + "|" + user.Email
	}

	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(string(g.purpose) + "|" + state))
	return hex.EncodeToString(mac.Sum(nil))[:fingerprintLength]
}

// EncodeUID はユーザーIDをURLに埋め込める形式（パディングなしのURL安全base64）に変換する。
func EncodeUID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeUID はEncodeUIDで変換した値をユーザーIDに戻す。
// 末尾のパディングは許容する。
func DecodeUID(uidb64 string) (string, error) {
	for len(uidb64) > 0 && uidb64[len(uidb64)-1] == '=' {
		uidb64 = uidb64[:len(uidb64)-1]
	}
	raw, err := base64.RawURLEncoding.DecodeString(uidb64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidUID, err)
	}
	if len(raw) == 0 || !utf8.Valid(raw) {
		return "", ErrInvalidUID
	}
	return string(raw), nil
}
