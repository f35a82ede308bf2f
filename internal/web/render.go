// Package web 负责公开页面的模板
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"time"

	"github.com/gin-contrib/multitemplate"
)

//go:embed templates
var templatesFS embed.FS

// 页面名 -> 模板文件，每个页面都和 layouts 组合
var pages = map[string]string{
	"error.html":       "templates/error.html",
	"user/posts.html":  "templates/user/posts.html",
	"post/detail.html": "templates/post/detail.html",
}

var layouts = []string{
	"templates/layouts/base.html",
}

func FuncMap() template.FuncMap {
	return template.FuncMap{
		"isoDate": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.UTC().Format(time.RFC3339)
		},
		"shortDate": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format("Jan 2, 2006")
		},
	}
}

// Renderer 加载内嵌模板，返回给 gin 的 HTMLRender
func Renderer() (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()

	base := make([]string, 0, len(layouts))
	for _, name := range layouts {
		b, err := fs.ReadFile(templatesFS, name)
		if err != nil {
			return nil, fmt.Errorf("read layout %s: %w", name, err)
		}
		base = append(base, string(b))
	}

	funcs := FuncMap()
	for name, file := range pages {
		b, err := fs.ReadFile(templatesFS, file)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", file, err)
		}
		// 页面放在第一位，作为入口模板
		files := append([]string{string(b)}, base...)
		r.AddFromStringsFuncs(name, funcs, files...)
	}
	return r, nil
}
