// Package swap 实现分配的替换人选推荐
//
// 给定一条既有分配，在候选池中寻找可以顶替的人员：
// 先用约束校验过滤可行性，再按策略评分排序。
package swap

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/allocator/rule"
	"github.com/yipai/yipai/pkg/allocator/score"
	"github.com/yipai/yipai/pkg/model"
)

// Recommendation 一条替换推荐
type Recommendation struct {
	Staff      *model.StaffMember `json:"staff"`
	Confidence float64            `json:"confidence"`
	Reasoning  string             `json:"reasoning"`
	Rank       int                `json:"rank"`
}

// Evaluation 替换可行性评估
type Evaluation struct {
	Feasible   bool             `json:"feasible"`
	Confidence float64          `json:"confidence"`
	Violations []rule.Violation `json:"violations"`
	Summary    string           `json:"summary"`
}

// Options 推荐参数
type Options struct {
	MaxRecommendations int     // 默认 5
	MinConfidence      float64 // 低于此置信度的候选不推荐
}

// DefaultOptions 返回默认推荐参数
func DefaultOptions() Options {
	return Options{MaxRecommendations: 5, MinConfidence: 0.3}
}

// Recommender 替换人选推荐器
type Recommender struct {
	validator *rule.Validator
}

// NewRecommender 创建推荐器
func NewRecommender(policy rule.CertPolicy) *Recommender {
	return &Recommender{validator: rule.NewValidator(policy)}
}

// Input 推荐输入
type Input struct {
	Allocation   *model.Allocation
	Shift        *model.Shift
	Candidates   []*model.StaffMember
	Allocations  []*model.Allocation // 当前全部活跃分配
	Shifts       []*model.Shift
	Availability []*model.AvailabilityRecord
	Strategy     score.Strategy
}

// Recommend 返回按置信度排序的替换人选
//
// 现任人员与已在目标班次任职的人员被排除；校验时将目标分配
// 临时摘除，替换者不会与被替换的占用发生假性冲突。
func (r *Recommender) Recommend(input *Input, opts Options) []Recommendation {
	if opts.MaxRecommendations <= 0 {
		opts.MaxRecommendations = DefaultOptions().MaxRecommendations
	}

	rctx := r.contextWithout(input, input.Allocation.ID)
	scorer := score.NewScorer(input.Strategy)
	serving := r.servingShift(input)

	var eligible []*model.StaffMember
	for _, staff := range input.Candidates {
		if staff.ID == input.Allocation.StaffID {
			continue
		}
		if staff.Role != input.Allocation.Role {
			continue
		}
		if serving[staff.ID] {
			continue
		}
		if r.validator.Validate(rctx, staff, input.Shift).Eligible {
			eligible = append(eligible, staff)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	scorer.SetPool(eligible)
	recs := make([]Recommendation, 0, len(eligible))
	for _, staff := range eligible {
		sc := scorer.Evaluate(staff, input.Shift)
		if sc.Confidence < opts.MinConfidence {
			continue
		}
		recs = append(recs, Recommendation{
			Staff:      staff,
			Confidence: sc.Confidence,
			Reasoning:  sc.Reasoning,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Confidence != recs[j].Confidence {
			return recs[i].Confidence > recs[j].Confidence
		}
		if recs[i].Staff.SkillLevel != recs[j].Staff.SkillLevel {
			return recs[i].Staff.SkillLevel > recs[j].Staff.SkillLevel
		}
		return recs[i].Staff.ID.String() < recs[j].Staff.ID.String()
	})
	if len(recs) > opts.MaxRecommendations {
		recs = recs[:opts.MaxRecommendations]
	}
	for i := range recs {
		recs[i].Rank = i + 1
	}
	return recs
}

// Evaluate 评估指定人员顶替某条分配的可行性
func (r *Recommender) Evaluate(input *Input, substitute *model.StaffMember) *Evaluation {
	rctx := r.contextWithout(input, input.Allocation.ID)

	if substitute.Role != input.Allocation.Role {
		return &Evaluation{
			Feasible: false,
			Summary:  fmt.Sprintf("人员 %s 岗位为 %s，无法顶替 %s 岗位", substitute.Name, substitute.Role, input.Allocation.Role),
		}
	}

	if r.servingShift(input)[substitute.ID] {
		return &Evaluation{
			Feasible: false,
			Summary:  fmt.Sprintf("人员 %s 已在该班次任职，不可作为替换人选", substitute.Name),
		}
	}

	res := r.validator.Validate(rctx, substitute, input.Shift)
	eval := &Evaluation{
		Feasible:   res.Eligible,
		Violations: res.Violations,
	}
	if !res.Eligible {
		eval.Summary = fmt.Sprintf("人员 %s 存在 %d 条硬性违规，不可顶替", substitute.Name, res.HardCount())
		return eval
	}

	scorer := score.NewScorer(input.Strategy)
	scorer.SetPool(input.Candidates)
	sc := scorer.Evaluate(substitute, input.Shift)
	eval.Confidence = sc.Confidence
	eval.Summary = sc.Reasoning
	return eval
}

// servingShift 返回已在目标班次持有活跃分配的人员集合，
// 被替换的那条分配本身不计入
func (r *Recommender) servingShift(input *Input) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool)
	for _, a := range input.Allocations {
		if a.ID == input.Allocation.ID {
			continue
		}
		if a.ShiftID == input.Shift.ID && a.IsActiveStatus() {
			out[a.StaffID] = true
		}
	}
	return out
}

func (r *Recommender) contextWithout(input *Input, excludeID uuid.UUID) *rule.Context {
	var allocs []*model.Allocation
	for _, a := range input.Allocations {
		if a.ID != excludeID {
			allocs = append(allocs, a)
		}
	}
	rctx := rule.NewContext(input.Candidates, input.Shifts, allocs)
	rctx.SetAvailability(input.Availability)
	return rctx
}
