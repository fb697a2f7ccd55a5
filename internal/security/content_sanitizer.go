// Package security はアプリケーションのセキュリティ機能を提供する。
//
// CourseSanitizer はリモートバックエンドから取得したコースの表示用テキストをサニタイズする。
// PasswordHasher はリモートバックエンドに保存するパスワードハッシュを扱う。
package security

import (
	"html"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はコースのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// SanitizeCourse はコースの表示用フィールドをサニタイズしたコピーを返す。
	SanitizeCourse(c model.Course) model.Course
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフであり、生成後は共有して使う。
type contentSanitizer struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - description: p, br, ul, ol, li, strong, em, code と a[href] のみ許可
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
//   - その他のテキスト: タグを全て除去したプレーンテキスト
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em", "code",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		rich:  p,
		plain: bluemonday.StrictPolicy(),
	}
}

// SanitizeCourse はコースの表示用フィールドをサニタイズしたコピーを返す。
// 入力のスライスは変更しない。
func (s *contentSanitizer) SanitizeCourse(c model.Course) model.Course {
	out := c.Clone()
	out.Title = s.text(c.Title)
	out.Description = s.rich.Sanitize(c.Description)
	out.Instructor = s.text(c.Instructor)
	out.Category = s.text(c.Category)
	out.Duration = s.text(c.Duration)
	for i, o := range out.Objectives {
		out.Objectives[i] = s.text(o)
	}
	for i := range out.Curriculum {
		sec := &out.Curriculum[i]
		sec.Title = s.text(sec.Title)
		for j := range sec.Lessons {
			sec.Lessons[j].Title = s.text(sec.Lessons[j].Title)
			sec.Lessons[j].Duration = s.text(sec.Lessons[j].Duration)
		}
	}
	return out
}

// text はタグを除去し、エスケープを戻したプレーンテキストを返す。
// 表示側でテキストとして扱うため、&などを二重にエスケープしない。
func (s *contentSanitizer) text(v string) string {
	if v == "" {
		return ""
	}
	return html.UnescapeString(s.plain.Sanitize(v))
}
