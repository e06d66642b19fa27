package response

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/camdenwatts/teamspace/pkg/errors"
)

// Response defines the base API payload shared by every endpoint.
type Response struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      *ErrorInfo  `json:"error,omitempty"`
	Meta       *Meta       `json:"meta,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	StatusCode int         `json:"status_code"`
}

// ErrorInfo holds error details to send to clients.
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Meta describes pagination metadata.
type Meta struct {
	CurrentPage  int   `json:"current_page"`
	PerPage      int   `json:"per_page"`
	Total        int64 `json:"total"`
	LastPage     int   `json:"last_page"`
	From         int   `json:"from"`
	To           int   `json:"to"`
	HasMorePages bool  `json:"has_more_pages"`
}

// NewMeta derives pagination metadata from page parameters and a total row count.
func NewMeta(page, perPage int, total int64) *Meta {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}

	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}

	from := (page-1)*perPage + 1
	to := page * perPage
	if int64(to) > total {
		to = int(total)
	}
	if total == 0 {
		from = 0
		to = 0
	}

	return &Meta{
		CurrentPage:  page,
		PerPage:      perPage,
		Total:        total,
		LastPage:     lastPage,
		From:         from,
		To:           to,
		HasMorePages: page < lastPage,
	}
}

// Success writes a JSON success response.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Success:    true,
		Data:       data,
		Timestamp:  time.Now().UTC(),
		StatusCode: statusCode,
	})
}

// SuccessWithMessage writes a JSON success response including a human readable message.
func SuccessWithMessage(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success:    true,
		Message:    message,
		Data:       data,
		Timestamp:  time.Now().UTC(),
		StatusCode: statusCode,
	})
}

// Created writes a 201 response for newly created resources.
func Created(c *gin.Context, data interface{}) {
	Success(c, http.StatusCreated, data)
}

// Paginated writes a success response including pagination metadata.
func Paginated(c *gin.Context, data interface{}, meta *Meta) {
	c.JSON(http.StatusOK, Response{
		Success:    true,
		Data:       data,
		Meta:       meta,
		Timestamp:  time.Now().UTC(),
		StatusCode: http.StatusOK,
	})
}

// Error writes a JSON error response derived from an AppError.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    appErr.Code,
			Message: appErr.Message,
			Fields:  appErr.Fields,
		},
		Timestamp:  time.Now().UTC(),
		StatusCode: status,
	})
}

// RateLimited writes a 429 response and sets the Retry-After header.
func RateLimited(c *gin.Context, retryAfter time.Duration) {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	Error(c, appErrors.ErrRateLimit)
}
