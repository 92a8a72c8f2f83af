// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/internal/metrics"
	"github.com/yipai/yipai/internal/repository"
	"github.com/yipai/yipai/pkg/allocator"
	"github.com/yipai/yipai/pkg/allocator/rule"
	"github.com/yipai/yipai/pkg/allocator/score"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/model"
	"github.com/yipai/yipai/pkg/optimizer"
	"github.com/yipai/yipai/pkg/validator"
)

// AllocationHandler 分配与优化处理器
type AllocationHandler struct {
	engine       *allocator.Engine
	optimizer    *optimizer.Optimizer
	detector     *validator.ConflictDetector
	staff        *repository.StaffRepository
	shifts       *repository.ShiftRepository
	allocations  *repository.AllocationRepository
	availability *repository.AvailabilityRepository
	timeout      time.Duration
}

// NewAllocationHandler 创建分配处理器
func NewAllocationHandler(
	engine *allocator.Engine,
	opt *optimizer.Optimizer,
	detector *validator.ConflictDetector,
	staff *repository.StaffRepository,
	shifts *repository.ShiftRepository,
	allocations *repository.AllocationRepository,
	availability *repository.AvailabilityRepository,
	timeout time.Duration,
) *AllocationHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AllocationHandler{
		engine:       engine,
		optimizer:    opt,
		detector:     detector,
		staff:        staff,
		shifts:       shifts,
		allocations:  allocations,
		availability: availability,
		timeout:      timeout,
	}
}

// ConstraintsInput 分配约束输入
type ConstraintsInput struct {
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	BackupMargin        int     `json:"backup_margin,omitempty"`
	AutoApprove         bool    `json:"auto_approve,omitempty"`
	AllowMultiRole      bool    `json:"allow_multi_role,omitempty"`
}

// AutoAllocateRequest 批量自动分配请求
type AutoAllocateRequest struct {
	StartDate   string            `json:"start_date"`
	EndDate     string            `json:"end_date"`
	Department  string            `json:"department,omitempty"`
	ShiftIDs    []string          `json:"shift_ids,omitempty"`
	Strategy    string            `json:"strategy,omitempty"` // cost/quality/satisfaction/balance
	Constraints *ConstraintsInput `json:"constraints,omitempty"`
	Overrides   map[string]bool   `json:"overrides,omitempty"` // staff_id -> 周工时豁免
	DryRun      bool              `json:"dry_run,omitempty"`   // 仅计算不落库
}

// AutoAllocateResponse 批量自动分配响应
type AutoAllocateResponse struct {
	Success           bool                     `json:"success"`
	Partial           bool                     `json:"partial,omitempty"`
	Message           string                   `json:"message,omitempty"`
	BatchID           string                   `json:"batch_id"`
	Allocations       []*model.Allocation      `json:"allocations"`
	Unfilled          []allocator.UnfilledSlot `json:"unfilled,omitempty"`
	OptimizationScore float64                  `json:"optimization_score"`
	Recommendations   []string                 `json:"recommendations,omitempty"`
	Persisted         bool                     `json:"persisted"`
	Duration          string                   `json:"duration"`
}

// AutoAllocate 对日期范围内的班次执行批量自动分配
func (h *AllocationHandler) AutoAllocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req AutoAllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if err := validateDateRange(req.StartDate, req.EndDate); err != nil {
		respondError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	shifts, err := h.loadShifts(ctx, req.StartDate, req.EndDate, req.Department, req.ShiftIDs)
	if err != nil {
		respondError(w, asAppError(err, "加载班次失败"))
		return
	}
	if len(shifts) == 0 {
		respondError(w, errors.New(errors.CodeNotFound, "日期范围内没有待分配的班次"))
		return
	}

	candidates, err := h.loadStaff(ctx, req.Department)
	if err != nil {
		respondError(w, asAppError(err, "加载人员失败"))
		return
	}
	// 周工时与跨日重叠校验需要相邻一周的既有分配作为上下文
	histStart, histEnd := rangeWindow(req.StartDate, req.EndDate)
	existing, err := h.allocations.ListActiveByDateRange(ctx, histStart, histEnd)
	if err != nil {
		respondError(w, asAppError(err, "加载已有分配失败"))
		return
	}
	records, err := h.availability.ListRecords(ctx)
	if err != nil {
		respondError(w, asAppError(err, "加载可用性状态失败"))
		return
	}
	overrides, appErr := parseOverrides(req.Overrides)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	strategy := score.ParseStrategy(req.Strategy)
	batchReq := &allocator.Request{
		Shifts:       shifts,
		Candidates:   candidates,
		Existing:     existing,
		Availability: records,
		Strategy:     strategy,
		Constraints:  toConstraints(req.Constraints),
		Overrides:    overrides,
	}

	result, err := h.engine.AutoAllocate(ctx, batchReq)
	if err != nil {
		metrics.RecordAllocationBatch(string(strategy), false, 0, 0)
		if err == context.DeadlineExceeded {
			respondError(w, errors.New(errors.CodeTimeout, "分配计算超时，请缩小日期范围"))
			return
		}
		respondError(w, asAppError(err, "批量分配失败"))
		return
	}
	metrics.RecordAllocationBatch(string(strategy), true, result.OptimizationScore, result.Duration)

	persisted := false
	if !req.DryRun && len(result.Allocations) > 0 {
		if err := h.allocations.CreateBatch(ctx, result.Allocations); err != nil {
			respondError(w, asAppError(err, "保存分配结果失败"))
			return
		}
		persisted = true
	}

	resp := AutoAllocateResponse{
		Success:           true,
		Partial:           len(result.Unfilled) > 0 && len(result.Allocations) > 0,
		BatchID:           uuid.New().String(),
		Allocations:       result.Allocations,
		Unfilled:          result.Unfilled,
		OptimizationScore: result.OptimizationScore,
		Recommendations:   result.Recommendations,
		Persisted:         persisted,
		Duration:          result.Duration.String(),
	}
	if resp.Partial {
		resp.Message = "生成了部分分配方案，仍有岗位缺口"
	}
	if len(result.Allocations) == 0 {
		resp.Success = false
		resp.Message = "没有产生任何可行分配"
	}

	respondJSON(w, http.StatusOK, resp)
}

// ValidateAllocationRequest 单条分配校验请求
type ValidateAllocationRequest struct {
	StaffID  string `json:"staff_id"`
	ShiftID  string `json:"shift_id"`
	Override bool   `json:"override,omitempty"` // 周工时上限豁免
}

// ValidateAllocationResponse 单条分配校验响应
type ValidateAllocationResponse struct {
	Eligible   bool             `json:"eligible"`
	Violations []rule.Violation `json:"violations"`
}

// Validate 校验某人员承接某班次是否可行
func (h *AllocationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req ValidateAllocationRequest
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

	staff, err := h.staff.GetByID(ctx, staffID)
	if err != nil {
		respondError(w, asAppError(err, "加载人员失败"))
		return
	}
	if staff == nil {
		respondError(w, errors.NotFound("人员", req.StaffID))
		return
	}
	shift, err := h.shifts.GetShift(ctx, shiftID)
	if err != nil {
		respondError(w, asAppError(err, "加载班次失败"))
		return
	}

	// 校验需要同一周的既有分配作为上下文
	start, end := weekWindow(shift.Date)
	existing, err := h.allocations.ListActiveByDateRange(ctx, start, end)
	if err != nil {
		respondError(w, asAppError(err, "加载已有分配失败"))
		return
	}
	var records []*model.AvailabilityRecord
	if rec, err := h.availability.GetRecord(ctx, staffID); err == nil && rec != nil {
		records = append(records, rec)
	}

	vreq := &allocator.Request{
		Shifts:       []*model.Shift{shift},
		Candidates:   []*model.StaffMember{staff},
		Existing:     existing,
		Availability: records,
	}
	if req.Override {
		vreq.Overrides = map[uuid.UUID]bool{staffID: true}
	}

	result := h.engine.Validate(vreq, staff, shift)
	for _, v := range result.Violations {
		metrics.RecordConstraintEvaluation(string(v.Kind), false)
	}

	respondJSON(w, http.StatusOK, ValidateAllocationResponse{
		Eligible:   result.Eligible,
		Violations: result.Violations,
	})
}

// OptimizeRequest 排班优化请求
type OptimizeRequest struct {
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Strategy  string          `json:"strategy,omitempty"`
	Overrides map[string]bool `json:"overrides,omitempty"`
	Apply     bool            `json:"apply,omitempty"` // 将调整方案落库
}

// OptimizeResponse 排班优化响应
type OptimizeResponse struct {
	Deltas      []optimizer.Delta     `json:"deltas"`
	Improvement optimizer.Improvement `json:"improvement"`
	Applied     bool                  `json:"applied"`
}

// Optimize 对既有排班执行局部搜索优化
func (h *AllocationHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if err := validateDateRange(req.StartDate, req.EndDate); err != nil {
		respondError(w, err)
		return
	}
	overrides, appErr := parseOverrides(req.Overrides)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	shifts, err := h.shifts.ListByDateRange(ctx, req.StartDate, req.EndDate)
	if err != nil {
		respondError(w, asAppError(err, "加载班次失败"))
		return
	}
	staff, err := h.staff.ListActive(ctx)
	if err != nil {
		respondError(w, asAppError(err, "加载人员失败"))
		return
	}
	allocations, err := h.allocations.ListActiveByDateRange(ctx, req.StartDate, req.EndDate)
	if err != nil {
		respondError(w, asAppError(err, "加载已有分配失败"))
		return
	}
	records, err := h.availability.ListRecords(ctx)
	if err != nil {
		respondError(w, asAppError(err, "加载可用性状态失败"))
		return
	}

	result, err := h.optimizer.Optimize(ctx, &optimizer.Request{
		Shifts:       shifts,
		Staff:        staff,
		Allocations:  allocations,
		Availability: records,
		Range:        model.DateRange{StartDate: req.StartDate, EndDate: req.EndDate},
		Strategy:     score.ParseStrategy(req.Strategy),
		Overrides:    overrides,
	})
	if err != nil {
		if err == context.DeadlineExceeded {
			respondError(w, errors.New(errors.CodeTimeout, "优化计算超时，请缩小日期范围"))
			return
		}
		respondError(w, asAppError(err, "排班优化失败"))
		return
	}
	metrics.RecordOptimizerIterations(result.Improvement.Iterations)

	applied := false
	if req.Apply && len(result.Deltas) > 0 {
		if err := h.applyDeltas(ctx, result.Deltas, staff, shifts); err != nil {
			respondError(w, asAppError(err, "应用优化方案失败"))
			return
		}
		applied = true
	}

	respondJSON(w, http.StatusOK, OptimizeResponse{
		Deltas:      result.Deltas,
		Improvement: result.Improvement,
		Applied:     applied,
	})
}

// applyDeltas 将优化器的调整提案落库
func (h *AllocationHandler) applyDeltas(ctx context.Context, deltas []optimizer.Delta,
	staff []*model.StaffMember, shifts []*model.Shift) error {
	staffByID := make(map[uuid.UUID]*model.StaffMember, len(staff))
	for _, s := range staff {
		staffByID[s.ID] = s
	}
	shiftByID := make(map[uuid.UUID]*model.Shift, len(shifts))
	for _, s := range shifts {
		shiftByID[s.ID] = s
	}

	for _, d := range deltas {
		switch d.Kind {
		case optimizer.DeltaAssign:
			member, ok := staffByID[d.StaffID]
			if !ok {
				return errors.NotFound("人员", d.StaffID.String())
			}
			shift, ok := shiftByID[d.ShiftID]
			if !ok {
				return errors.NotFound("班次", d.ShiftID.String())
			}
			if err := h.allocations.Create(ctx, model.NewAllocation(member, shift, d.Role)); err != nil {
				return err
			}
		case optimizer.DeltaUnassign:
			if d.AllocationID == nil {
				continue
			}
			alloc, err := h.allocations.GetByID(ctx, *d.AllocationID)
			if err != nil {
				return err
			}
			if alloc == nil {
				continue
			}
			alloc.Status = model.AllocationRejected
			if err := h.allocations.Update(ctx, alloc); err != nil {
				return err
			}
		case optimizer.DeltaReassign:
			if d.AllocationID == nil {
				continue
			}
			alloc, err := h.allocations.GetByID(ctx, *d.AllocationID)
			if err != nil {
				return err
			}
			if alloc == nil {
				continue
			}
			alloc.StaffID = d.StaffID
			alloc.Status = model.AllocationPending
			if err := h.allocations.Update(ctx, alloc); err != nil {
				return err
			}
		}
	}
	return nil
}

// DetectConflictsRequest 冲突检测请求
type DetectConflictsRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// DetectConflicts 检测日期范围内排班的冲突
func (h *AllocationHandler) DetectConflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req DetectConflictsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if err := validateDateRange(req.StartDate, req.EndDate); err != nil {
		respondError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	shifts, err := h.shifts.ListByDateRange(ctx, req.StartDate, req.EndDate)
	if err != nil {
		respondError(w, asAppError(err, "加载班次失败"))
		return
	}
	allocations, err := h.allocations.ListActiveByDateRange(ctx, req.StartDate, req.EndDate)
	if err != nil {
		respondError(w, asAppError(err, "加载已有分配失败"))
		return
	}

	report := h.detector.Detect(allocations, shifts)
	for kind, count := range report.ByType {
		for i := 0; i < count; i++ {
			metrics.RecordConflict(string(kind))
		}
	}

	respondJSON(w, http.StatusOK, report)
}

// loadShifts 按日期范围加载班次，可选按科室或指定ID过滤
func (h *AllocationHandler) loadShifts(ctx context.Context, startDate, endDate, dept string, ids []string) ([]*model.Shift, error) {
	shifts, err := h.shifts.ListByDateRange(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if dept != "" {
		filtered := shifts[:0]
		for _, s := range shifts {
			if s.Department == model.Department(dept) {
				filtered = append(filtered, s)
			}
		}
		shifts = filtered
	}
	if len(ids) > 0 {
		want := make(map[uuid.UUID]bool, len(ids))
		for _, raw := range ids {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeInvalidInput, "无效的班次ID格式: "+raw)
			}
			want[id] = true
		}
		filtered := shifts[:0]
		for _, s := range shifts {
			if want[s.ID] {
				filtered = append(filtered, s)
			}
		}
		shifts = filtered
	}
	return shifts, nil
}

// loadStaff 加载在岗人员，可选按科室过滤
func (h *AllocationHandler) loadStaff(ctx context.Context, dept string) ([]*model.StaffMember, error) {
	if dept != "" {
		return h.staff.ListActiveByDepartment(ctx, model.Department(dept))
	}
	return h.staff.ListActive(ctx)
}

// toConstraints 转换约束输入，未提供时使用引擎默认值
func toConstraints(in *ConstraintsInput) allocator.Constraints {
	c := allocator.Constraints{ConfidenceThreshold: 0.5, BackupMargin: 1}
	if in == nil {
		return c
	}
	if in.ConfidenceThreshold > 0 {
		c.ConfidenceThreshold = in.ConfidenceThreshold
	}
	if in.BackupMargin > 0 {
		c.BackupMargin = in.BackupMargin
	}
	c.AutoApprove = in.AutoApprove
	c.AllowMultiRole = in.AllowMultiRole
	return c
}

// parseOverrides 解析按人员的周工时豁免表
func parseOverrides(raw map[string]bool) (map[uuid.UUID]bool, *errors.AppError) {
	if len(raw) == 0 {
		return nil, nil
	}
	overrides := make(map[uuid.UUID]bool, len(raw))
	for key, val := range raw {
		id, err := uuid.Parse(key)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "无效的人员ID格式: "+key)
		}
		overrides[id] = val
	}
	return overrides, nil
}

// validateDateRange 校验YYYY-MM-DD日期范围
func validateDateRange(startDate, endDate string) *errors.AppError {
	ve := &errors.ValidationErrors{}

	if startDate == "" {
		ve.Add("start_date", "开始日期不能为空")
	} else if _, err := time.Parse("2006-01-02", startDate); err != nil {
		ve.Add("start_date", "日期格式无效，应为YYYY-MM-DD")
	}
	if endDate == "" {
		ve.Add("end_date", "结束日期不能为空")
	} else if _, err := time.Parse("2006-01-02", endDate); err != nil {
		ve.Add("end_date", "日期格式无效，应为YYYY-MM-DD")
	}
	if !ve.HasErrors() && endDate < startDate {
		ve.Add("end_date", "结束日期不能早于开始日期")
	}

	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// weekWindow 返回以date为中心前后各7天的日期范围
func weekWindow(date string) (string, string) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date, date
	}
	return day.AddDate(0, 0, -7).Format("2006-01-02"), day.AddDate(0, 0, 7).Format("2006-01-02")
}

// rangeWindow 返回日期范围向前后各扩展7天后的范围
func rangeWindow(startDate, endDate string) (string, string) {
	start, _ := weekWindow(startDate)
	_, end := weekWindow(endDate)
	return start, end
}

// asAppError 透传应用错误，其余包装为内部错误
func asAppError(err error, message string) *errors.AppError {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr
	}
	return errors.Wrap(err, errors.CodeInternal, message)
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}
