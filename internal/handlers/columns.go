package handlers

import (
	"fmt"
	"postbase/internal/models"
	"sort"
	"strings"
	"time"
)

// 客户端可写的列
var writableColumns = map[string]bool{
	"title":         true,
	"content":       true,
	"excerpt":       true,
	"slug":          true,
	"type":          true,
	"status":        true,
	"thumbnail_url": true,
	"published_at":  true,
}

// 由数据库维护的列
var readOnlyColumns = map[string]bool{
	"id":         true,
	"views":      true,
	"created_at": true,
	"updated_at": true,
}

var (
	postTypes    = []string{models.PostTypePost, models.PostTypePage}
	postStatuses = []string{models.PostStatusDraft, models.PostStatusPublish, models.PostStatusPrivate}
)

func invalidInput(typ string, v interface{}) *BackendError {
	return &BackendError{
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("invalid input syntax for type %s: \"%v\"", typ, v),
	}
}

func notNull(column string) *BackendError {
	return &BackendError{
		Code:    CodeNotNull,
		Message: fmt.Sprintf("null value in column \"%s\" of relation \"posts\" violates not-null constraint", column),
	}
}

func checkViolation(column string, v interface{}, allowed []string) *BackendError {
	return &BackendError{
		Code:    CodeCheck,
		Message: fmt.Sprintf("new row for relation \"posts\" violates check constraint \"posts_%s_check\"", column),
		Details: fmt.Sprintf("%v is not one of %s", v, strings.Join(allowed, ", ")),
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// postColumns 校验 formData，返回可直接用于 Updates 的列值
// user_id 只用于鉴权，不会写入
func postColumns(formData map[string]interface{}) (map[string]interface{}, error) {
	keys := make([]string, 0, len(formData))
	for k := range formData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		v := formData[k]
		switch {
		case k == "user_id":
			continue
		case readOnlyColumns[k]:
			return nil, &BackendError{
				Code:    CodeReadOnly,
				Message: fmt.Sprintf("column \"%s\" can only be updated to DEFAULT", k),
			}
		case !writableColumns[k]:
			return nil, &BackendError{
				Code:    CodeUnknownColumn,
				Message: fmt.Sprintf("Could not find the '%s' column of 'posts' in the schema cache", k),
			}
		}

		if k == "published_at" {
			if v == nil {
				values[k] = (*time.Time)(nil)
				continue
			}
			s, ok := v.(string)
			if !ok {
				return nil, invalidInput("timestamp with time zone", v)
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, invalidInput("timestamp with time zone", s)
			}
			values[k] = &t
			continue
		}

		if v == nil {
			switch k {
			case "title", "slug", "type", "status":
				return nil, notNull(k)
			}
			values[k] = ""
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, invalidInput("text", v)
		}

		switch k {
		case "title":
			if strings.TrimSpace(s) == "" {
				return nil, notNull(k)
			}
		case "type":
			if !contains(postTypes, s) {
				return nil, checkViolation(k, s, postTypes)
			}
		case "status":
			if !contains(postStatuses, s) {
				return nil, checkViolation(k, s, postStatuses)
			}
		}
		values[k] = s
	}
	return values, nil
}

// applyColumns 把校验过的列值写到新建的文章上
func applyColumns(post *models.Post, values map[string]interface{}) {
	for k, v := range values {
		switch k {
		case "title":
			post.Title = v.(string)
		case "content":
			post.Content = v.(string)
		case "excerpt":
			post.Excerpt = v.(string)
		case "slug":
			post.Slug = v.(string)
		case "type":
			post.Type = v.(string)
		case "status":
			post.Status = v.(string)
		case "thumbnail_url":
			post.ThumbnailURL = v.(string)
		case "published_at":
			post.PublishedAt = v.(*time.Time)
		}
	}
}
