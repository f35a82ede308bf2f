package handlers

import (
	"fmt"
	"html"
	"net/http"
	"postbase/internal/models"
	"postbase/internal/utils"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SEOHandler struct {
	db      *gorm.DB
	siteURL string
	now     func() time.Time
}

func NewSEOHandler(db *gorm.DB, siteURL string) *SEOHandler {
	return &SEOHandler{
		db:      db,
		siteURL: strings.TrimRight(siteURL, "/"),
		now:     time.Now,
	}
}

// RobotsTxt GET /robots.txt
func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /

# 接口和登录回调
Disallow: /api/
Disallow: /auth/

Sitemap: %s/sitemap.xml
`, h.siteURL)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

// publishedPosts 最近发布的文章，带作者
func (h *SEOHandler) publishedPosts(c *gin.Context, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := h.db.WithContext(c.Request.Context()).
		Preload("Author").
		Where("status = ? AND type = ?", models.PostStatusPublish, models.PostTypePost).
		Order("published_at DESC, id DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// SitemapXML GET /sitemap.xml，作者主页加最近 500 篇文章
func (h *SEOHandler) SitemapXML(c *gin.Context) {
	posts, err := h.publishedPosts(c, 500)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
`)

	authors := make(map[string]time.Time)
	order := make([]string, 0)
	for _, post := range posts {
		name := post.Author.Username
		if name == "" {
			continue
		}
		if last, seen := authors[name]; !seen {
			order = append(order, name)
			authors[name] = post.UpdatedAt
		} else if post.UpdatedAt.After(last) {
			authors[name] = post.UpdatedAt
		}
	}
	for _, name := range order {
		fmt.Fprintf(&b, `  <url>
    <loc>%s/%s</loc>
    <lastmod>%s</lastmod>
    <changefreq>daily</changefreq>
    <priority>0.8</priority>
  </url>
`, h.siteURL, escapeXML(name), authors[name].Format("2006-01-02"))
	}

	for _, post := range posts {
		path := post.Path()
		if path == "" {
			continue
		}
		// 新文章优先级高一些
		priority := 0.6
		if post.PublishedAt != nil && h.now().Sub(*post.PublishedAt) < 7*24*time.Hour {
			priority = 0.8
		}
		fmt.Fprintf(&b, `  <url>
    <loc>%s%s</loc>
    <lastmod>%s</lastmod>
    <changefreq>weekly</changefreq>
    <priority>%.1f</priority>
  </url>
`, h.siteURL, escapeXML(path), post.UpdatedAt.Format("2006-01-02"), priority)
	}

	b.WriteString(`</urlset>`)

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

// RSSFeed GET /feed.xml，最新 20 篇
func (h *SEOHandler) RSSFeed(c *gin.Context) {
	posts, err := h.publishedPosts(c, 20)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <title>postbase</title>
    <link>` + h.siteURL + `</link>
    <description>Latest posts</description>
    <lastBuildDate>` + h.now().Format(time.RFC1123Z) + `</lastBuildDate>
    <atom:link href="` + h.siteURL + `/feed.xml" rel="self" type="application/rss+xml"/>
`)

	for _, post := range posts {
		link := h.siteURL + post.Path()
		description := post.Excerpt
		if description == "" {
			description = utils.MarkdownExcerpt(post.Content, 300)
		}
		pubDate := post.CreatedAt
		if post.PublishedAt != nil {
			pubDate = *post.PublishedAt
		}

		b.WriteString(`    <item>
      <title>` + escapeXML(post.Title) + `</title>
      <link>` + escapeXML(link) + `</link>
      <description>` + escapeXML(description) + `</description>
      <author>` + escapeXML(post.Author.Username) + `</author>
      <pubDate>` + pubDate.Format(time.RFC1123Z) + `</pubDate>
      <guid isPermaLink="true">` + escapeXML(link) + `</guid>
    </item>
`)
	}

	b.WriteString(`  </channel>
</rss>`)

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

// escapeXML 转义XML特殊字符
func escapeXML(s string) string {
	return html.EscapeString(s)
}
