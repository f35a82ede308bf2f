package utils

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	policy = bluemonday.UGCPolicy()
)

func init() {
	policy.AllowImages()
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnLinks(true)
}

// sanitizedMarkdown 渲染并清洗，失败时返回转义后的原文
func sanitizedMarkdown(source string) string {
	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		return template.HTMLEscapeString(source)
	}
	return string(policy.SanitizeBytes(buf.Bytes()))
}

func RenderMarkdown(source string) template.HTML {
	return EnhanceHTMLContent(sanitizedMarkdown(source))
}

// MarkdownExcerpt 文章摘要：markdown 渲染后的纯文本
func MarkdownExcerpt(source string, limit int) string {
	return PlainText(sanitizedMarkdown(source), limit)
}
