// Package score 实现人员-班次匹配度评分
//
// 置信度取值 [0,1]，由四个归一化子分按策略权重加权得出，
// 并生成确定性的推荐理由。
package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yipai/yipai/pkg/model"
)

// Strategy 分配策略
type Strategy string

const (
	StrategyCost         Strategy = "cost"         // 成本优先
	StrategyQuality      Strategy = "quality"      // 质量优先
	StrategySatisfaction Strategy = "satisfaction" // 偏好优先
	StrategyBalance      Strategy = "balance"      // 均衡
)

// ParseStrategy 解析策略字符串，未知策略回退为均衡
func ParseStrategy(s string) Strategy {
	switch Strategy(s) {
	case StrategyCost, StrategyQuality, StrategySatisfaction, StrategyBalance:
		return Strategy(s)
	}
	return StrategyBalance
}

// Weights 子分权重（合计为1）
type Weights struct {
	Skill      float64
	Experience float64
	Preference float64
	Cost       float64
}

// WeightsFor 返回策略对应的权重向量
func WeightsFor(s Strategy) Weights {
	switch s {
	case StrategyQuality:
		return Weights{Skill: 0.40, Experience: 0.35, Preference: 0.15, Cost: 0.10}
	case StrategyCost:
		return Weights{Skill: 0.15, Experience: 0.10, Preference: 0.15, Cost: 0.60}
	case StrategySatisfaction:
		return Weights{Skill: 0.20, Experience: 0.10, Preference: 0.60, Cost: 0.10}
	default:
		return Weights{Skill: 0.25, Experience: 0.25, Preference: 0.25, Cost: 0.25}
	}
}

// SubScores 四个归一化子分
type SubScores struct {
	SkillFit      float64 `json:"skill_fit"`
	ExperienceFit float64 `json:"experience_fit"`
	PreferenceFit float64 `json:"preference_fit"`
	CostFit       float64 `json:"cost_fit"`
}

// Score 一次评分结果
type Score struct {
	Confidence float64   `json:"confidence"` // [0,1]
	Sub        SubScores `json:"sub_scores"`
	Reasoning  string    `json:"reasoning"`
}

// Scorer 匹配度评分器
type Scorer struct {
	strategy       Strategy
	weights        Weights
	neutralPref    float64 // 非偏好班次的中性分
	poolMinRate    float64
	poolMaxRate    float64
	poolNormalized bool
}

// NewScorer 创建评分器
func NewScorer(strategy Strategy) *Scorer {
	return &Scorer{
		strategy:    strategy,
		weights:     WeightsFor(strategy),
		neutralPref: 0.5,
	}
}

// SetPool 载入候选池，用于时薪归一化；池为空时成本子分取 0.5
func (s *Scorer) SetPool(candidates []*model.StaffMember) {
	s.poolNormalized = false
	if len(candidates) == 0 {
		return
	}
	min, max := candidates[0].HourlyRate, candidates[0].HourlyRate
	for _, c := range candidates[1:] {
		if c.HourlyRate < min {
			min = c.HourlyRate
		}
		if c.HourlyRate > max {
			max = c.HourlyRate
		}
	}
	s.poolMinRate, s.poolMaxRate = min, max
	s.poolNormalized = true
}

// Evaluate 对（人员，班次）评分
func (s *Scorer) Evaluate(staff *model.StaffMember, shift *model.Shift) Score {
	sub := SubScores{
		SkillFit:      s.skillFit(staff, shift),
		ExperienceFit: experienceFit(staff.ExperienceYears),
		PreferenceFit: s.preferenceFit(staff, shift),
		CostFit:       s.costFit(staff),
	}
	w := s.weights
	confidence := clip01(w.Skill*sub.SkillFit + w.Experience*sub.ExperienceFit +
		w.Preference*sub.PreferenceFit + w.Cost*sub.CostFit)

	return Score{
		Confidence: confidence,
		Sub:        sub,
		Reasoning:  s.reasoning(staff, shift, sub, confidence),
	}
}

// skillFit 技能契合度：达到门槛即满分，超出不加分
func (s *Scorer) skillFit(staff *model.StaffMember, shift *model.Shift) float64 {
	min := shift.MinSkillLevel
	if min < 1 {
		min = 1
	}
	fit := float64(staff.SkillLevel) / float64(min)
	if fit > 1 {
		fit = 1
	}
	return fit
}

// experienceFit 经验契合度：单调饱和曲线 1 - 1/(1+年限)
func experienceFit(years int) float64 {
	if years < 0 {
		years = 0
	}
	return 1 - 1/float64(1+years)
}

// preferenceFit 偏好契合度：偏好班次类型得满分，否则中性分
func (s *Scorer) preferenceFit(staff *model.StaffMember, shift *model.Shift) float64 {
	if staff.PrefersShiftType(shift.ShiftType) {
		return 1
	}
	return s.neutralPref
}

// costFit 成本契合度：按候选池时薪区间反向归一化
func (s *Scorer) costFit(staff *model.StaffMember) float64 {
	if !s.poolNormalized || s.poolMaxRate == s.poolMinRate {
		return 0.5
	}
	return (s.poolMaxRate - staff.HourlyRate) / (s.poolMaxRate - s.poolMinRate)
}

type factor struct {
	name     string
	weighted float64
}

// reasoning 生成确定性推荐理由，列出贡献最大的因素
func (s *Scorer) reasoning(staff *model.StaffMember, shift *model.Shift, sub SubScores, confidence float64) string {
	w := s.weights
	factors := []factor{
		{fmt.Sprintf("技能契合 %.2f", sub.SkillFit), w.Skill * sub.SkillFit},
		{fmt.Sprintf("经验契合 %.2f", sub.ExperienceFit), w.Experience * sub.ExperienceFit},
		{fmt.Sprintf("偏好契合 %.2f", sub.PreferenceFit), w.Preference * sub.PreferenceFit},
		{fmt.Sprintf("成本契合 %.2f", sub.CostFit), w.Cost * sub.CostFit},
	}
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].weighted > factors[j].weighted })

	parts := make([]string, 0, 2)
	for _, f := range factors[:2] {
		parts = append(parts, f.name)
	}
	return fmt.Sprintf("%s 策略下 %s 匹配 %s %s 班次，置信度 %.2f，主要因素: %s",
		s.strategy, staff.Name, shift.Date, shift.ShiftType, confidence, strings.Join(parts, "、"))
}

// Blend 将建议权重按有界影响因子混入本地置信度
func Blend(local, suggestion, influence float64) float64 {
	if influence < 0 {
		influence = 0
	}
	if influence > 1 {
		influence = 1
	}
	return clip01((1-influence)*local + influence*clip01(suggestion))
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
