// Package render formats a merged result as Markdown, HTML or a terminal table.
package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/yuin/goldmark"

	"threadpilot/internal/model"
)

// Markdown 帖子按 n/N 编号，超出平台字符预算的帖子会标注
func Markdown(r *model.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s thread (%s)\n\n", r.Platform, r.Style)

	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "> **Note:** %s\n\n", w)
	}

	posts := r.Thread.Posts
	limit := r.Platform.CharLimit()
	for i, p := range posts {
		fmt.Fprintf(&b, "## %d/%d\n\n", i+1, len(posts))
		b.WriteString(p.Text)
		b.WriteString("\n\n")
		if p.Image != "" {
			alt := fmt.Sprintf("Image for post %d", i+1)
			if p.IsPlaceholder {
				alt = "Placeholder image"
			}
			fmt.Fprintf(&b, "![%s](%s)\n\n", alt, p.Image)
		}
		meta := fmt.Sprintf("%d/%d characters", p.CharCount, limit)
		if p.CharCount > limit {
			meta += " (over limit)"
		}
		fmt.Fprintf(&b, "_%s_\n\n", meta)
	}

	if opt := r.Optimizations; opt != nil {
		b.WriteString("---\n\n## Optimizations\n\n")
		fmt.Fprintf(&b, "**Hook:** %s\n\n", opt.Hook)
		if len(opt.SuggestedPostTimes) > 0 {
			b.WriteString("**Suggested posting times:**\n\n")
			for _, ts := range opt.SuggestedPostTimes {
				fmt.Fprintf(&b, "- %s\n", ts)
			}
			b.WriteString("\n")
		}
		if opt.Reasoning != "" {
			fmt.Fprintf(&b, "%s\n", opt.Reasoning)
		}
	}
	return b.String()
}

// HTML 由 Markdown 转换而来，保持 goldmark 默认的安全模式
func HTML(r *model.Result) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(r)), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Table 终端表格，图片只显示状态
func Table(r *model.Result) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(fmt.Sprintf("%s thread (%s)", r.Platform, r.Style))
	tw.AppendHeader(table.Row{"#", "Post", "Chars", "Image"})

	limit := r.Platform.CharLimit()
	for i, p := range r.Thread.Posts {
		image := "generated"
		if p.IsPlaceholder {
			image = "placeholder"
		}
		chars := strconv.Itoa(p.CharCount)
		if p.CharCount > limit {
			chars += " !"
		}
		tw.AppendRow(table.Row{fmt.Sprintf("%d/%d", i+1, len(r.Thread.Posts)), p.Text, chars, image})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, WidthMax: 72, WidthMaxEnforcer: text.WrapSoft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	out := tw.Render()
	var extra strings.Builder
	if opt := r.Optimizations; opt != nil {
		fmt.Fprintf(&extra, "\nHook: %s\n", opt.Hook)
		if len(opt.SuggestedPostTimes) > 0 {
			fmt.Fprintf(&extra, "Post at: %s\n", strings.Join(opt.SuggestedPostTimes, ", "))
		}
		if opt.Reasoning != "" {
			fmt.Fprintf(&extra, "Why: %s\n", opt.Reasoning)
		}
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&extra, "Warning: %s\n", w)
	}
	return out + "\n" + extra.String()
}
