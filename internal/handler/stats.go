package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/internal/metrics"
	"github.com/yipai/yipai/internal/policy"
	"github.com/yipai/yipai/internal/repository"
	"github.com/yipai/yipai/pkg/allocator/score"
	"github.com/yipai/yipai/pkg/demand"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/model"
	"github.com/yipai/yipai/pkg/stats"
	"github.com/yipai/yipai/pkg/swap"
)

// StatsHandler 统计分析与辅助决策处理器
type StatsHandler struct {
	workload     *stats.WorkloadAnalyzer
	coverage     *stats.CoverageAnalyzer
	recommender  *swap.Recommender
	planner      *demand.Planner
	registry     *policy.Registry
	staff        *repository.StaffRepository
	shifts       *repository.ShiftRepository
	allocations  *repository.AllocationRepository
	availability *repository.AvailabilityRepository
	timeout      time.Duration
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(
	recommender *swap.Recommender,
	planner *demand.Planner,
	registry *policy.Registry,
	staff *repository.StaffRepository,
	shifts *repository.ShiftRepository,
	allocations *repository.AllocationRepository,
	availability *repository.AvailabilityRepository,
	timeout time.Duration,
) *StatsHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StatsHandler{
		workload:     stats.NewWorkloadAnalyzer(),
		coverage:     stats.NewCoverageAnalyzer(),
		recommender:  recommender,
		planner:      planner,
		registry:     registry,
		staff:        staff,
		shifts:       shifts,
		allocations:  allocations,
		availability: availability,
		timeout:      timeout,
	}
}

// StatsRequest 统计报表请求
type StatsRequest struct {
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Department string `json:"department,omitempty"`
}

// Workload 统计日期范围内的人员工作量分布
func (h *StatsHandler) Workload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req StatsRequest
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

	staff, err := h.listStaff(ctx, req.Department)
	if err != nil {
		respondError(w, asAppError(err, "加载人员失败"))
		return
	}
	allocations, err := h.allocations.ListActiveByDateRange(ctx, req.StartDate, req.EndDate)
	if err != nil {
		respondError(w, asAppError(err, "加载已有分配失败"))
		return
	}

	report := h.workload.Analyze(staff, allocations)
	metrics.SetWorkloadGini(deptLabel(req.Department), report.Gini)

	respondJSON(w, http.StatusOK, report)
}

// Coverage 统计日期范围内的班次覆盖率
func (h *StatsHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req StatsRequest
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
	if req.Department != "" {
		filtered := shifts[:0]
		for _, s := range shifts {
			if s.Department == model.Department(req.Department) {
				filtered = append(filtered, s)
			}
		}
		shifts = filtered
	}
	allocations, err := h.allocations.ListByDateRange(ctx, req.StartDate, req.EndDate)
	if err != nil {
		respondError(w, asAppError(err, "加载已有分配失败"))
		return
	}

	report := h.coverage.Analyze(shifts, allocations)
	metrics.SetCoverageRate(deptLabel(req.Department), report.OverallFillRate)

	respondJSON(w, http.StatusOK, report)
}

// Requirements 查询日期范围内各班次的岗位缺口
func (h *StatsHandler) Requirements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}

	query := r.URL.Query()
	startDate := query.Get("start_date")
	endDate := query.Get("end_date")
	if err := validateDateRange(startDate, endDate); err != nil {
		respondError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	shifts, err := h.shifts.ListByDateRange(ctx, startDate, endDate)
	if err != nil {
		respondError(w, asAppError(err, "加载班次失败"))
		return
	}
	if dept := query.Get("department"); dept != "" {
		filtered := shifts[:0]
		for _, s := range shifts {
			if s.Department == model.Department(dept) {
				filtered = append(filtered, s)
			}
		}
		shifts = filtered
	}
	allocations, err := h.allocations.ListActiveByDateRange(ctx, startDate, endDate)
	if err != nil {
		respondError(w, asAppError(err, "加载已有分配失败"))
		return
	}

	requirements := h.planner.RequirementsAll(shifts, allocations)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"requirements": requirements,
		"total":        len(requirements),
	})
}

// PlanShiftsRequest 按模板建班请求
type PlanShiftsRequest struct {
	Date       string `json:"date"`
	Department string `json:"department"`
}

// PlanShifts 按科室模板为某天批量创建班次
func (h *StatsHandler) PlanShifts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req PlanShiftsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	ve := &errors.ValidationErrors{}
	if req.Date == "" {
		ve.Add("date", "日期不能为空")
	} else if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		ve.Add("date", "日期格式无效，应为YYYY-MM-DD")
	}
	if req.Department == "" {
		ve.Add("department", "科室不能为空")
	}
	if ve.HasErrors() {
		respondError(w, ve.ToAppError())
		return
	}

	shifts, err := h.planner.PlanShifts(req.Date, model.Department(req.Department), demand.DefaultTemplates())
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "按模板建班失败"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for _, shift := range shifts {
		if err := h.shifts.Create(ctx, shift); err != nil {
			respondError(w, asAppError(err, "保存班次失败"))
			return
		}
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"shifts": shifts,
		"total":  len(shifts),
	})
}

// SwapRecommendRequest 顶班推荐请求
type SwapRecommendRequest struct {
	AllocationID       string  `json:"allocation_id"`
	Strategy           string  `json:"strategy,omitempty"`
	MaxRecommendations int     `json:"max_recommendations,omitempty"`
	MinConfidence      float64 `json:"min_confidence,omitempty"`
}

// SwapRecommend 为某条分配推荐可顶班的替补人员
func (h *StatsHandler) SwapRecommend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req SwapRecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	allocationID, err := uuid.Parse(req.AllocationID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的分配ID格式"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	input, appErr := h.buildSwapInput(ctx, allocationID, req.Strategy)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	opts := swap.DefaultOptions()
	if req.MaxRecommendations > 0 {
		opts.MaxRecommendations = req.MaxRecommendations
	}
	if req.MinConfidence > 0 {
		opts.MinConfidence = req.MinConfidence
	}

	recs := h.recommender.Recommend(input, opts)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"allocation_id":   allocationID.String(),
		"recommendations": recs,
		"total":           len(recs),
	})
}

// SwapEvaluateRequest 顶班评估请求
type SwapEvaluateRequest struct {
	AllocationID string `json:"allocation_id"`
	SubstituteID string `json:"substitute_id"`
	Strategy     string `json:"strategy,omitempty"`
}

// SwapEvaluate 评估指定替补承接某条分配的可行性
func (h *StatsHandler) SwapEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req SwapEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	allocationID, err := uuid.Parse(req.AllocationID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的分配ID格式"))
		return
	}
	substituteID, err := uuid.Parse(req.SubstituteID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的人员ID格式"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	input, appErr := h.buildSwapInput(ctx, allocationID, req.Strategy)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	substitute, err := h.staff.GetByID(ctx, substituteID)
	if err != nil {
		respondError(w, asAppError(err, "加载人员失败"))
		return
	}
	if substitute == nil {
		respondError(w, errors.NotFound("人员", req.SubstituteID))
		return
	}

	evaluation := h.recommender.Evaluate(input, substitute)

	respondJSON(w, http.StatusOK, evaluation)
}

// buildSwapInput 组装顶班评估所需的上下文数据
func (h *StatsHandler) buildSwapInput(ctx context.Context, allocationID uuid.UUID, strategy string) (*swap.Input, *errors.AppError) {
	alloc, err := h.allocations.GetByID(ctx, allocationID)
	if err != nil {
		return nil, asAppError(err, "加载分配失败")
	}
	if alloc == nil {
		return nil, errors.NotFound("分配", allocationID.String())
	}
	shift, err := h.shifts.GetShift(ctx, alloc.ShiftID)
	if err != nil {
		return nil, asAppError(err, "加载班次失败")
	}

	candidates, err := h.staff.ListActive(ctx)
	if err != nil {
		return nil, asAppError(err, "加载人员失败")
	}
	start, end := weekWindow(shift.Date)
	allocations, err := h.allocations.ListActiveByDateRange(ctx, start, end)
	if err != nil {
		return nil, asAppError(err, "加载已有分配失败")
	}
	shifts, err := h.shifts.ListByDateRange(ctx, start, end)
	if err != nil {
		return nil, asAppError(err, "加载班次失败")
	}
	records, err := h.availability.ListRecords(ctx)
	if err != nil {
		return nil, asAppError(err, "加载可用性状态失败")
	}

	return &swap.Input{
		Allocation:   alloc,
		Shift:        shift,
		Candidates:   candidates,
		Allocations:  allocations,
		Shifts:       shifts,
		Availability: records,
		Strategy:     score.ParseStrategy(strategy),
	}, nil
}

// CertificationPolicy 查询资质门槛规则表
func (h *StatsHandler) CertificationPolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}

	requirements := h.registry.List()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"requirements": requirements,
		"total":        len(requirements),
	})
}

func (h *StatsHandler) listStaff(ctx context.Context, dept string) ([]*model.StaffMember, error) {
	if dept != "" {
		return h.staff.ListActiveByDepartment(ctx, model.Department(dept))
	}
	return h.staff.ListActive(ctx)
}

// deptLabel 指标用的科室标签，空值归并为all
func deptLabel(dept string) string {
	if dept == "" {
		return "all"
	}
	return dept
}
