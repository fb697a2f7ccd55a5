// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// DefaultRole は新規プロフィールに設定されるロール。
const DefaultRole = "student"

// User はサービス利用ユーザーを表す。
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Clone はユーザーのコピーを返す。nilにはnilを返す。
// プレゼンテーション層には常にコピーを渡す。
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Equal は2つのスナップショットが同一内容かどうかを返す。
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == nil && other == nil
	}
	return u.ID == other.ID &&
		u.Email == other.Email &&
		u.DisplayName == other.DisplayName &&
		u.EmailVerified == other.EmailVerified
}

// LocalPart はメールアドレスの@より前の部分を返す。
// 表示名が未設定の場合のデフォルト値に使用する。
func LocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// Profile はユーザーごとの拡張プロフィールを表す。
type Profile struct {
	UserID           string    `json:"userId"`
	DisplayName      string    `json:"displayName"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	EnrolledCourses  []string  `json:"enrolledCourses"`
	CompletedCourses []string  `json:"completedCourses"`
	CreatedAt        time.Time `json:"createdAt"`
}

// AuthSession はリモートバックエンド上のログインセッションを表す。
type AuthSession struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
