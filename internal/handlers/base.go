package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"postbase/internal/middleware"
	"postbase/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if profile, exists := c.Get(middleware.CurrentProfileKey); exists {
		obj["CurrentUser"] = profile.(*models.Profile)
	}
	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

// Error helper
func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message, "Title": http.StatusText(code)})
}

// ApiError 本服务自己合成的错误（401/402 等）
type ApiError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func NewApiError(status int) *ApiError {
	return &ApiError{Status: status, Message: http.StatusText(status)}
}

// BackendError 数据库返回的错误，字段与 PostgREST 的错误对象一致
type BackendError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *BackendError) Error() string {
	return e.Message
}

// 常用错误码
const (
	CodeNoRows        = "PGRST116" // .single() 得到 0 或多行
	CodeInvalidJSON   = "PGRST102"
	CodeUnknownColumn = "PGRST204"
	CodeInvalidInput  = "22P02"
	CodeNotNull       = "23502"
	CodeUnique        = "23505"
	CodeCheck         = "23514"
	CodeReadOnly      = "42501"
)

func noRows(n int) *BackendError {
	return &BackendError{
		Code:    CodeNoRows,
		Message: "JSON object requested, multiple (or no) rows returned",
		Details: fmt.Sprintf("The result contains %d rows", n),
	}
}

// backendError 把 gorm / pgx 的错误转成对外的错误对象
func backendError(err error) *BackendError {
	var be *BackendError
	if errors.As(err, &be) {
		return be
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &BackendError{
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
		}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return noRows(0)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &BackendError{Code: CodeUnique, Message: err.Error()}
	}
	return &BackendError{Message: err.Error()}
}

// 统一的响应体
func fail(c *gin.Context, status int, err interface{}) {
	c.JSON(status, gin.H{"data": nil, "error": err})
}

func failBackend(c *gin.Context, err error) {
	_ = c.Error(err)
	fail(c, http.StatusBadRequest, backendError(err))
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data, "error": nil})
}
