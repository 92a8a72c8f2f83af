package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/internal/metrics"
	"github.com/yipai/yipai/internal/repository"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/lifecycle"
	"github.com/yipai/yipai/pkg/model"
)

// LifecycleHandler 班次与人员状态流转处理器
type LifecycleHandler struct {
	manager      *lifecycle.Manager
	availability *repository.AvailabilityRepository
	timeout      time.Duration
}

// NewLifecycleHandler 创建生命周期处理器
func NewLifecycleHandler(manager *lifecycle.Manager, availability *repository.AvailabilityRepository, timeout time.Duration) *LifecycleHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LifecycleHandler{manager: manager, availability: availability, timeout: timeout}
}

// ShiftTransitionRequest 班次状态流转请求
type ShiftTransitionRequest struct {
	ShiftID string `json:"shift_id"`
	Notes   string `json:"notes,omitempty"` // 仅完班时使用
}

// StartShift 开班
func (h *LifecycleHandler) StartShift(w http.ResponseWriter, r *http.Request) {
	h.shiftTransition(w, r, "start", func(ctx context.Context, shiftID uuid.UUID, _ string) (*model.Shift, error) {
		return h.manager.StartShift(ctx, shiftID)
	})
}

// CompleteShift 完班并结算工时
func (h *LifecycleHandler) CompleteShift(w http.ResponseWriter, r *http.Request) {
	h.shiftTransition(w, r, "complete", func(ctx context.Context, shiftID uuid.UUID, notes string) (*model.Shift, error) {
		return h.manager.CompleteShift(ctx, shiftID, notes)
	})
}

// ArchiveShift 归档已完成的班次
func (h *LifecycleHandler) ArchiveShift(w http.ResponseWriter, r *http.Request) {
	h.shiftTransition(w, r, "archive", func(ctx context.Context, shiftID uuid.UUID, _ string) (*model.Shift, error) {
		return h.manager.ArchiveShift(ctx, shiftID)
	})
}

func (h *LifecycleHandler) shiftTransition(w http.ResponseWriter, r *http.Request, action string,
	fn func(ctx context.Context, shiftID uuid.UUID, notes string) (*model.Shift, error)) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req ShiftTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	shiftID, err := uuid.Parse(req.ShiftID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的班次ID格式"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	shift, err := fn(ctx, shiftID, req.Notes)
	metrics.RecordLifecycleTransition(action, err == nil)
	if err != nil {
		respondError(w, asAppError(err, "班次状态流转失败"))
		return
	}

	respondJSON(w, http.StatusOK, shift)
}

// StaffActionRequest 人员可用性操作请求
type StaffActionRequest struct {
	StaffID string `json:"staff_id"`
	ShiftID string `json:"shift_id,omitempty"` // 签到必填，签退可选
	Reason  string `json:"reason,omitempty"`   // 仅标记不可用时使用
	Notes   string `json:"notes,omitempty"`    // 仅签退时使用
}

// CheckIn 人员到岗签到
func (h *LifecycleHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req StaffActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	staffID, err := uuid.Parse(req.StaffID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的人员ID格式"))
		return
	}
	shiftID, err := uuid.Parse(req.ShiftID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的班次ID格式"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, err := h.manager.CheckIn(ctx, staffID, shiftID)
	metrics.RecordLifecycleTransition("checkin", err == nil)
	if err != nil {
		respondError(w, asAppError(err, "签到失败"))
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// CheckOut 人员签退，可附交接备注
func (h *LifecycleHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req StaffActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	staffID, err := uuid.Parse(req.StaffID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的人员ID格式"))
		return
	}
	shiftID := uuid.Nil
	if req.ShiftID != "" {
		if shiftID, err = uuid.Parse(req.ShiftID); err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的班次ID格式"))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, err := h.manager.CheckOut(ctx, staffID, shiftID, req.Notes)
	metrics.RecordLifecycleTransition("checkout", err == nil)
	if err != nil {
		respondError(w, asAppError(err, "签退失败"))
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// BeginBreak 开始休息
func (h *LifecycleHandler) BeginBreak(w http.ResponseWriter, r *http.Request) {
	h.staffAction(w, r, "break_begin", func(ctx context.Context, staffID uuid.UUID, _ string) (*model.AvailabilityRecord, error) {
		return h.manager.BeginBreak(ctx, staffID)
	})
}

// EndBreak 结束休息
func (h *LifecycleHandler) EndBreak(w http.ResponseWriter, r *http.Request) {
	h.staffAction(w, r, "break_end", func(ctx context.Context, staffID uuid.UUID, _ string) (*model.AvailabilityRecord, error) {
		return h.manager.EndBreak(ctx, staffID)
	})
}

// Hold 标记人员不可用
func (h *LifecycleHandler) Hold(w http.ResponseWriter, r *http.Request) {
	h.staffAction(w, r, "hold", func(ctx context.Context, staffID uuid.UUID, reason string) (*model.AvailabilityRecord, error) {
		return h.manager.Hold(ctx, staffID, reason)
	})
}

// ClearHold 解除不可用标记
func (h *LifecycleHandler) ClearHold(w http.ResponseWriter, r *http.Request) {
	h.staffAction(w, r, "hold_clear", func(ctx context.Context, staffID uuid.UUID, _ string) (*model.AvailabilityRecord, error) {
		return h.manager.ClearHold(ctx, staffID)
	})
}

func (h *LifecycleHandler) staffAction(w http.ResponseWriter, r *http.Request, action string,
	fn func(ctx context.Context, staffID uuid.UUID, reason string) (*model.AvailabilityRecord, error)) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req StaffActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	staffID, err := uuid.Parse(req.StaffID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的人员ID格式"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, err := fn(ctx, staffID, req.Reason)
	metrics.RecordLifecycleTransition(action, err == nil)
	if err != nil {
		respondError(w, asAppError(err, "人员状态流转失败"))
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// AvailabilityEvents 查询人员的可用性状态变更历史
func (h *LifecycleHandler) AvailabilityEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}

	staffID, err := uuid.Parse(r.URL.Query().Get("staff_id"))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的人员ID格式"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, errors.New(errors.CodeInvalidInput, "limit必须为非负整数"))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	events, err := h.availability.ListEventsByStaff(ctx, staffID, limit)
	if err != nil {
		respondError(w, asAppError(err, "加载状态变更历史失败"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"staff_id": staffID.String(),
		"events":   events,
		"total":    len(events),
	})
}
