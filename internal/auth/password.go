package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash はユーザーが存在しない場合の比較に使うハッシュ。
// 存在の有無で応答時間が変わらないよう、同じコストで比較させる。
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("seminar-dummy-password"), bcrypt.DefaultCost)

// HashPassword はパスワードのbcryptハッシュを生成する。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword はパスワードがbcryptハッシュと一致するかどうかを返す。
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
