package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
)

// RetryAfterSeconds is advertised on 503 responses for transient ledger failures.
const RetryAfterSeconds = "1"

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
	// Data carries committed state when the request succeeded but raised an anomaly.
	Data any `json:"data,omitempty"`
}

type DataEnvelope struct {
	Data any `json:"data"`
}

type PageEnvelope struct {
	Data     any   `json:"data"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	NextPage *int  `json:"next_page"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, DataEnvelope{Data: payload})
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, DataEnvelope{Data: payload})
}

// RespondPage writes a list page. next is 0 on the last page.
func RespondPage(c *gin.Context, items any, page, size int, total int64, next int) {
	env := PageEnvelope{Data: items, Page: page, PageSize: size, Total: total}
	if next > 0 {
		env.NextPage = &next
	}
	c.JSON(http.StatusOK, env)
}

// StatusFor maps an aggregate error code to its HTTP status.
func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeForbidden:
		return http.StatusForbidden
	case domainagg.CodeInvalidTransition, domainagg.CodeDuplicateTransaction, domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondDomainError renders err using its aggregate code. data, when non-nil, is
// attached to the error body.
func RespondDomainError(c *gin.Context, err error, data any) {
	var aggErr *domainagg.Error
	if !errors.As(err, &aggErr) {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorEnvelope{
			Error: APIError{Message: "internal error", Code: string(domainagg.CodeInternal)},
			Data:  data,
		})
		return
	}
	code := aggErr.Code
	if code == domainagg.CodeInvariantViolation {
		code = domainagg.CodeInternal
	}
	status := StatusFor(code)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", RetryAfterSeconds)
	}
	msg := aggErr.Message
	if msg == "" {
		msg = string(code)
	}
	// Driver and runtime text stays in the logs; only consistency anomalies are described.
	if status == http.StatusInternalServerError && code != domainagg.CodeInternalConsistency {
		msg = "internal error"
	}
	if status >= http.StatusInternalServerError {
		c.Error(err)
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{Message: msg, Code: string(code)},
		Data:  data,
	})
}
