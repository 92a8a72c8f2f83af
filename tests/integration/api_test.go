// Package integration 提供HTTP接口层集成测试
package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yipai/yipai/internal/handler"
)

// errorBody 错误响应体
type errorBody struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return body
}

// 校验失败在触达存储层之前返回，处理器可以不挂接依赖
func newAllocationHandler() *handler.AllocationHandler {
	return handler.NewAllocationHandler(nil, nil, nil, nil, nil, nil, nil, time.Second)
}

func TestAutoAllocate_RejectsInvalidJSON(t *testing.T) {
	h := newAllocationHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/allocations/auto", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.AutoAllocate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, expected 400", rec.Code)
	}
	body := decodeError(t, rec)
	if !body.Error || body.Code != "INVALID_INPUT" {
		t.Errorf("Unexpected error body: %+v", body)
	}
}

func TestAutoAllocate_RejectsBadDateRange(t *testing.T) {
	h := newAllocationHandler()

	tests := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"缺少日期", map[string]interface{}{"strategy": "balance"}},
		{"日期格式错误", map[string]interface{}{"start_date": "2025/04/01", "end_date": "2025-04-07"}},
		{"结束早于开始", map[string]interface{}{"start_date": "2025-04-07", "end_date": "2025-04-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.AutoAllocate, "/api/v1/allocations/auto", tt.payload)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, expected 400", rec.Code)
			}
		})
	}
}

func TestAutoAllocate_RejectsWrongMethod(t *testing.T) {
	h := newAllocationHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/allocations/auto", nil)
	rec := httptest.NewRecorder()
	h.AutoAllocate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, expected 400", rec.Code)
	}
}

func TestValidate_RejectsMalformedIDs(t *testing.T) {
	h := newAllocationHandler()

	rec := postJSON(t, h.Validate, "/api/v1/allocations/validate", map[string]interface{}{
		"staff_id": "not-a-uuid",
		"shift_id": "also-not-a-uuid",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, expected 400", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Code != "INVALID_INPUT" {
		t.Errorf("Code = %s, expected INVALID_INPUT", body.Code)
	}
}

func TestOptimize_RejectsBadOverrides(t *testing.T) {
	h := newAllocationHandler()

	rec := postJSON(t, h.Optimize, "/api/v1/schedule/optimize", map[string]interface{}{
		"start_date": "2025-04-01",
		"end_date":   "2025-04-07",
		"overrides":  map[string]bool{"bad-id": true},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, expected 400", rec.Code)
	}
}

func TestLifecycle_RejectsMalformedShiftID(t *testing.T) {
	h := handler.NewLifecycleHandler(nil, nil, time.Second)

	rec := postJSON(t, h.StartShift, "/api/v1/shifts/start", map[string]interface{}{
		"shift_id": "xyz",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, expected 400", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Code != "INVALID_INPUT" {
		t.Errorf("Code = %s, expected INVALID_INPUT", body.Code)
	}
}

func TestLifecycle_CheckInRequiresBothIDs(t *testing.T) {
	h := handler.NewLifecycleHandler(nil, nil, time.Second)

	// 缺少班次ID时签到请求被拒绝
	rec := postJSON(t, h.CheckIn, "/api/v1/availability/checkin", map[string]interface{}{
		"staff_id": "7b4b3faa-5c05-4a43-9a43-000000000001",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, expected 400", rec.Code)
	}
}

func TestSwapRecommend_RejectsMalformedAllocationID(t *testing.T) {
	h := handler.NewStatsHandler(nil, nil, nil, nil, nil, nil, nil, time.Second)

	rec := postJSON(t, h.SwapRecommend, "/api/v1/swap/recommend", map[string]interface{}{
		"allocation_id": "nope",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, expected 400", rec.Code)
	}
}

func TestRequirements_RejectsMissingDates(t *testing.T) {
	h := handler.NewStatsHandler(nil, nil, nil, nil, nil, nil, nil, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shifts/requirements", nil)
	rec := httptest.NewRecorder()
	h.Requirements(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, expected 400", rec.Code)
	}
}
