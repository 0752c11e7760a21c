package model

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Post 线程中的单条帖子，顺序即发布顺序
type Post struct {
	Order         int    `json:"order"`
	Text          string `json:"text"`
	CharCount     int    `json:"charCount"`
	Image         string `json:"image"` // data URI
	IsPlaceholder bool   `json:"isPlaceholder,omitempty"`
}

// GeneratedThread 帖子列表，usedPlaceholders 由各帖子的占位标记推导
type GeneratedThread struct {
	Posts []Post `json:"posts"`
}

// NewGeneratedThread 按下标补全 Order 和 CharCount
func NewGeneratedThread(posts []Post) *GeneratedThread {
	out := make([]Post, len(posts))
	for i, p := range posts {
		p.Order = i + 1
		p.CharCount = CountChars(p.Text)
		out[i] = p
	}
	return &GeneratedThread{Posts: out}
}

// UsedPlaceholders 任意一条帖子使用了占位图即为 true
func (t *GeneratedThread) UsedPlaceholders() bool {
	if t == nil {
		return false
	}
	for _, p := range t.Posts {
		if p.IsPlaceholder {
			return true
		}
	}
	return false
}

// PlaceholderIndexes 使用占位图的帖子下标
func (t *GeneratedThread) PlaceholderIndexes() []int {
	var idx []int
	for i, p := range t.Posts {
		if p.IsPlaceholder {
			idx = append(idx, i)
		}
	}
	return idx
}

// Texts 按顺序返回帖子正文
func (t *GeneratedThread) Texts() []string {
	out := make([]string, len(t.Posts))
	for i, p := range t.Posts {
		out[i] = p.Text
	}
	return out
}

// EditPost 本地修改帖子正文，不触发图片或优化建议的重新生成
func (t *GeneratedThread) EditPost(index int, text string) error {
	if index < 0 || index >= len(t.Posts) {
		return &ValidationError{Field: "index", Reason: fmt.Sprintf("post index %d out of range [0,%d)", index, len(t.Posts))}
	}
	if text == "" {
		return &ValidationError{Field: "text", Reason: "post text must not be empty"}
	}
	t.Posts[index].Text = text
	t.Posts[index].CharCount = CountChars(text)
	return nil
}

// OverLimit 超出平台字符预算的帖子下标，只报告不截断
func (t *GeneratedThread) OverLimit(p Platform) []int {
	limit := p.CharLimit()
	var idx []int
	for i, post := range t.Posts {
		if post.CharCount > limit {
			idx = append(idx, i)
		}
	}
	return idx
}

// Clone 深拷贝
func (t *GeneratedThread) Clone() *GeneratedThread {
	if t == nil {
		return nil
	}
	return &GeneratedThread{Posts: append([]Post(nil), t.Posts...)}
}

type threadJSON struct {
	Posts            []Post `json:"posts"`
	UsedPlaceholders bool   `json:"usedPlaceholders"`
}

func (t GeneratedThread) MarshalJSON() ([]byte, error) {
	return json.Marshal(threadJSON{Posts: t.Posts, UsedPlaceholders: t.UsedPlaceholders()})
}

// UnmarshalJSON 忽略传入的 usedPlaceholders，始终由帖子推导
func (t *GeneratedThread) UnmarshalJSON(b []byte) error {
	var raw threadJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t.Posts = raw.Posts
	return nil
}

// CountChars 按 NFC 归一化后的码点计数，与平台计数方式一致
func CountChars(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// TruncateChars 按码点截断
func TruncateChars(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
