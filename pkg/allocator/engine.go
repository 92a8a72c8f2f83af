// Package allocator 实现批量人员-班次分配引擎
package allocator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/allocator/oracle"
	"github.com/yipai/yipai/pkg/allocator/rule"
	"github.com/yipai/yipai/pkg/allocator/score"
	"github.com/yipai/yipai/pkg/logger"
	"github.com/yipai/yipai/pkg/model"
)

// Constraints 批量分配约束参数
type Constraints struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"` // 低于阈值保持待确认
	BackupMargin        int     `json:"backup_margin"`        // 每岗位允许的后备人数
	AutoApprove         bool    `json:"auto_approve"`         // 达标分配直接确认
	AllowMultiRole      bool    `json:"allow_multi_role"`     // 允许同一人在一个班次兼任多岗
}

// Request 批量分配请求
type Request struct {
	Shifts       []*model.Shift
	Candidates   []*model.StaffMember
	Existing     []*model.Allocation
	Availability []*model.AvailabilityRecord
	Strategy     score.Strategy
	Constraints  Constraints
	Overrides    map[uuid.UUID]bool // 按人员的周工时豁免
}

// UnfilledSlot 未能填补的岗位缺口
type UnfilledSlot struct {
	ShiftID uuid.UUID  `json:"shift_id"`
	Date    string     `json:"date"`
	Role    model.Role `json:"role"`
	Missing int        `json:"missing"`
	Reason  string     `json:"reason"`
}

// BatchResult 批量分配结果；部分成功是正常结果而非错误
type BatchResult struct {
	Allocations       []*model.Allocation `json:"allocations"`
	Unfilled          []UnfilledSlot      `json:"unfilled"`
	OptimizationScore float64             `json:"optimization_score"` // 平均置信度
	Recommendations   []string            `json:"recommendations"`
	Duration          time.Duration       `json:"duration"`
}

// Engine 分配引擎；可重入，批次内的临时占用仅存在于单次调用
type Engine struct {
	validator    *rule.Validator
	ranker       oracle.Ranker
	maxInfluence float64
	log          *logger.AllocationLogger
}

// NewEngine 创建分配引擎
//
// ranker 可为 nil，此时不请求建议服务。maxInfluence 约束建议
// 对本地评分的最大影响。
func NewEngine(policy rule.CertPolicy, ranker oracle.Ranker, maxInfluence float64) *Engine {
	if maxInfluence < 0 {
		maxInfluence = 0
	}
	if maxInfluence > 0.3 {
		maxInfluence = 0.3
	}
	return &Engine{
		validator:    rule.NewValidator(policy),
		ranker:       ranker,
		maxInfluence: maxInfluence,
		log:          logger.NewAllocationLogger(),
	}
}

// Validate 校验单次候选分配，返回全部违规
func (e *Engine) Validate(req *Request, staff *model.StaffMember, shift *model.Shift) *rule.Result {
	ctx := e.buildContext(req)
	return e.validator.Validate(ctx, staff, shift)
}

// AutoAllocate 执行批量分配
//
// 班次按优先级降序、日期升序处理；每个岗位逐一过滤-校验-评分，
// 贪心选取最高分候选。无合格候选的缺口记入 Unfilled，批次继续。
func (e *Engine) AutoAllocate(ctx context.Context, req *Request) (*BatchResult, error) {
	start := time.Now()
	e.log.StartBatch(len(req.Shifts), len(req.Candidates), string(req.Strategy))

	shifts := orderShifts(req.Shifts)
	rctx := e.buildContext(req)
	scorer := score.NewScorer(req.Strategy)

	result := &BatchResult{
		Allocations:     []*model.Allocation{},
		Unfilled:        []UnfilledSlot{},
		Recommendations: []string{},
	}
	batchHours := make(map[uuid.UUID]float64)

	for _, shift := range shifts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if shift.Status != model.ShiftScheduled {
			continue
		}
		e.allocateShift(ctx, rctx, scorer, req, shift, batchHours, result)
	}

	if len(result.Allocations) > 0 {
		var total float64
		for _, a := range result.Allocations {
			total += a.Confidence
		}
		result.OptimizationScore = total / float64(len(result.Allocations))
	}
	result.Duration = time.Since(start)
	e.log.BatchComplete(len(result.Allocations), len(result.Unfilled), result.Duration, result.OptimizationScore)
	return result, nil
}

// allocateShift 填充单个班次的全部岗位需求
func (e *Engine) allocateShift(ctx context.Context, rctx *rule.Context, scorer *score.Scorer,
	req *Request, shift *model.Shift, batchHours map[uuid.UUID]float64, result *BatchResult) {

	suggestions := e.oracleSuggestions(ctx, shift, req.Candidates)
	occupied := occupiedCount(rctx, shift.ID)
	assignedHere := assignedToShift(rctx, shift.ID)

	for _, role := range orderRoles(shift.RequiredStaff) {
		needed := shift.RequiredStaff[role] - confirmedForRole(rctx, shift.ID, role)
		for slot := 0; slot < needed; slot++ {
			if occupied >= shift.MaxCapacity {
				result.Unfilled = append(result.Unfilled, UnfilledSlot{
					ShiftID: shift.ID, Date: shift.Date, Role: role,
					Missing: needed - slot, Reason: "班次编制已满",
				})
				break
			}

			best := e.pickBest(rctx, scorer, req, shift, role, assignedHere, batchHours, suggestions)
			if best == nil {
				result.Unfilled = append(result.Unfilled, UnfilledSlot{
					ShiftID: shift.ID, Date: shift.Date, Role: role,
					Missing: needed - slot, Reason: "无满足硬约束的候选人",
				})
				break
			}

			alloc := model.NewAllocation(best.staff, shift, role)
			alloc.Confidence = best.confidence
			alloc.Reasoning = best.reasoning
			alloc.Override = req.Overrides[best.staff.ID]
			if req.Constraints.AutoApprove && best.confidence >= req.Constraints.ConfidenceThreshold {
				alloc.Status = model.AllocationConfirmed
			}
			if best.confidence < req.Constraints.ConfidenceThreshold {
				result.Recommendations = append(result.Recommendations, fmt.Sprintf(
					"班次 %s 岗位 %s 的分配 %s 置信度 %.2f 低于阈值 %.2f，建议人工复核",
					shift.Date, role, best.staff.Name, best.confidence, req.Constraints.ConfidenceThreshold))
			}

			rctx.AddAllocation(alloc)
			assignedHere[best.staff.ID] = true
			batchHours[best.staff.ID] += shift.DurationHours()
			occupied++
			result.Allocations = append(result.Allocations, alloc)
		}
	}

	// 高优先级班次在编制余量内补充后备人选；必选岗位全部处理后
	// 才补后备，后备始终保持待确认，由人工决定是否启用
	if req.Constraints.BackupMargin <= 0 || shift.Priority.Rank() < model.PriorityHigh.Rank() {
		return
	}
	for _, role := range orderRoles(shift.RequiredStaff) {
		for extra := 0; extra < req.Constraints.BackupMargin; extra++ {
			if occupied >= shift.MaxCapacity {
				return
			}
			backup := e.pickBest(rctx, scorer, req, shift, role, assignedHere, batchHours, suggestions)
			if backup == nil {
				break
			}
			alloc := model.NewAllocation(backup.staff, shift, role)
			alloc.Confidence = backup.confidence
			alloc.Reasoning = "后备人选: " + backup.reasoning
			alloc.Override = req.Overrides[backup.staff.ID]
			rctx.AddAllocation(alloc)
			assignedHere[backup.staff.ID] = true
			batchHours[backup.staff.ID] += shift.DurationHours()
			occupied++
			result.Allocations = append(result.Allocations, alloc)
		}
	}
}

type candidate struct {
	staff      *model.StaffMember
	confidence float64
	reasoning  string
}

// pickBest 过滤-校验-评分后返回最高分候选，平分时依批次内
// 累计工时、技能等级、ID字典序依次决出，保证跨运行确定性
func (e *Engine) pickBest(rctx *rule.Context, scorer *score.Scorer, req *Request,
	shift *model.Shift, role model.Role, assignedHere map[uuid.UUID]bool,
	batchHours map[uuid.UUID]float64, suggestions map[uuid.UUID]float64) *candidate {

	var eligible []*model.StaffMember
	for _, staff := range req.Candidates {
		if staff.Role != role {
			continue
		}
		if assignedHere[staff.ID] && !req.Constraints.AllowMultiRole {
			continue
		}
		res := e.validator.Validate(rctx, staff, shift)
		for _, v := range res.Violations {
			e.log.ViolationFound(staff.ID.String(), shift.ID.String(), string(v.Kind), v.Message)
		}
		if res.Eligible {
			eligible = append(eligible, staff)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	scorer.SetPool(eligible)
	var best *candidate
	for _, staff := range eligible {
		sc := scorer.Evaluate(staff, shift)
		confidence := sc.Confidence
		if w, ok := suggestions[staff.ID]; ok {
			confidence = score.Blend(confidence, w, e.maxInfluence)
		}
		cur := &candidate{staff: staff, confidence: confidence, reasoning: sc.Reasoning}
		if best == nil || better(cur, best, batchHours) {
			best = cur
		}
	}
	return best
}

func better(a, b *candidate, batchHours map[uuid.UUID]float64) bool {
	if a.confidence != b.confidence {
		return a.confidence > b.confidence
	}
	if batchHours[a.staff.ID] != batchHours[b.staff.ID] {
		return batchHours[a.staff.ID] < batchHours[b.staff.ID]
	}
	if a.staff.SkillLevel != b.staff.SkillLevel {
		return a.staff.SkillLevel > b.staff.SkillLevel
	}
	return a.staff.ID.String() < b.staff.ID.String()
}

// oracleSuggestions 请求建议服务，失败时降级为空建议
func (e *Engine) oracleSuggestions(ctx context.Context, shift *model.Shift, candidates []*model.StaffMember) map[uuid.UUID]float64 {
	if e.ranker == nil || e.maxInfluence == 0 {
		return nil
	}
	suggestions, err := e.ranker.ProposeRanking(ctx, shift, candidates)
	if err != nil {
		e.log.OracleDegraded(shift.ID.String(), err)
		return nil
	}
	out := make(map[uuid.UUID]float64, len(suggestions))
	for _, s := range suggestions {
		out[s.StaffID] = s.Weight
	}
	return out
}

func (e *Engine) buildContext(req *Request) *rule.Context {
	rctx := rule.NewContext(req.Candidates, req.Shifts, req.Existing)
	rctx.SetAvailability(req.Availability)
	for id, override := range req.Overrides {
		rctx.SetOverride(id, override)
	}
	return rctx
}

// orderShifts 返回按优先级降序、日期升序排列的副本
func orderShifts(shifts []*model.Shift) []*model.Shift {
	out := make([]*model.Shift, len(shifts))
	copy(out, shifts)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		return out[i].Date < out[j].Date
	})
	return out
}

// orderRoles 返回确定顺序的岗位列表
func orderRoles(required map[model.Role]int) []model.Role {
	roles := make([]model.Role, 0, len(required))
	for r := range required {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// occupiedCount 统计班次当前占用人数（待确认+已确认）
func occupiedCount(rctx *rule.Context, shiftID uuid.UUID) int {
	n := 0
	for _, a := range rctx.Allocations() {
		if a.ShiftID == shiftID && a.IsActiveStatus() {
			n++
		}
	}
	return n
}

// confirmedForRole 统计班次某岗位的活跃分配数
func confirmedForRole(rctx *rule.Context, shiftID uuid.UUID, role model.Role) int {
	n := 0
	for _, a := range rctx.Allocations() {
		if a.ShiftID == shiftID && a.Role == role && a.IsActiveStatus() {
			n++
		}
	}
	return n
}

// assignedToShift 返回批次内已占用该班次的人员集合
func assignedToShift(rctx *rule.Context, shiftID uuid.UUID) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool)
	for _, a := range rctx.Allocations() {
		if a.ShiftID == shiftID && a.IsActiveStatus() {
			out[a.StaffID] = true
		}
	}
	return out
}
