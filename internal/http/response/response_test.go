package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
)

func TestRespondDomainErrorStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		code   domainagg.ErrorCode
		status int
		want   string
	}{
		{domainagg.CodeValidation, http.StatusBadRequest, "validation"},
		{domainagg.CodeNotFound, http.StatusNotFound, "not_found"},
		{domainagg.CodeForbidden, http.StatusForbidden, "forbidden"},
		{domainagg.CodeInvalidTransition, http.StatusConflict, "invalid_transition"},
		{domainagg.CodeDuplicateTransaction, http.StatusConflict, "duplicate_transaction"},
		{domainagg.CodeConflict, http.StatusConflict, "conflict"},
		{domainagg.CodePreconditionFailed, http.StatusPreconditionFailed, "precondition_failed"},
		{domainagg.CodeRetryable, http.StatusServiceUnavailable, "retryable"},
		{domainagg.CodeInternalConsistency, http.StatusInternalServerError, "internal_consistency"},
		{domainagg.CodeInvariantViolation, http.StatusInternalServerError, "internal"},
		{domainagg.CodeInternal, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			err := fmt.Errorf("svc: %w", domainagg.NewError(tc.code, "Op", "boom", nil))
			RespondDomainError(c, err, nil)

			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d", tc.status, rec.Code)
			}
			var body ErrorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, body.Error.Code)
			}
			retryAfter := rec.Header().Get("Retry-After")
			if tc.status == http.StatusServiceUnavailable && retryAfter != RetryAfterSeconds {
				t.Fatalf("Retry-After: want=%q got=%q", RetryAfterSeconds, retryAfter)
			}
			if tc.status != http.StatusServiceUnavailable && retryAfter != "" {
				t.Fatalf("unexpected Retry-After %q", retryAfter)
			}
		})
	}
}

func TestRespondDomainErrorHidesPlainErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondDomainError(c, errors.New("dial tcp 10.0.0.1:5432: refused"), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", rec.Code)
	}
	var body ErrorEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error.Message != "internal error" {
		t.Fatalf("message: want=%q got=%q", "internal error", body.Error.Message)
	}
}

func TestRespondDomainErrorHidesInternalCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		code domainagg.ErrorCode
		msg  string
		want string
	}{
		{domainagg.CodeInternal, `pq: relation "donation" does not exist`, "internal error"},
		{domainagg.CodeInvariantViolation, "CHECK constraint failed: raised_amount >= 0", "internal error"},
		{domainagg.CodeInternalConsistency, "campaign raised total could not be adjusted", "campaign raised total could not be adjusted"},
		{domainagg.CodeRetryable, "transient failure persisted after 3 attempts", "transient failure persisted after 3 attempts"},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			RespondDomainError(c, domainagg.NewError(tc.code, "Op", tc.msg, nil), nil)
			var body ErrorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Message != tc.want {
				t.Fatalf("message: want=%q got=%q", tc.want, body.Error.Message)
			}
		})
	}
}

func TestRespondPageNextPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondPage(c, []int{1, 2}, 1, 2, 3, 2)
	var body struct {
		Total    int64 `json:"total"`
		NextPage *int  `json:"next_page"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 3 || body.NextPage == nil || *body.NextPage != 2 {
		t.Fatalf("page envelope: got total=%d next=%v", body.Total, body.NextPage)
	}

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	RespondPage(c, []int{3}, 2, 2, 3, 0)
	body.NextPage = nil
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.NextPage != nil {
		t.Fatalf("last page next_page: want=nil got=%d", *body.NextPage)
	}
}
