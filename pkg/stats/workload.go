// Package stats 提供排班工作量与覆盖率分析
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/model"
)

// 利用率分档阈值
const (
	overloadedThreshold    = 0.9
	underutilizedThreshold = 0.6
	maxRecommendations     = 5
)

// StaffWorkload 单个人员的工作量统计
type StaffWorkload struct {
	StaffID       uuid.UUID `json:"staff_id"`
	Name          string    `json:"name"`
	Role          model.Role `json:"role"`
	AssignedHours float64   `json:"assigned_hours"`
	MaxHours      int       `json:"max_hours"`
	Utilization   float64   `json:"utilization"` // 已分配/上限
	ShiftCount    int       `json:"shift_count"`
	Deviation     float64   `json:"deviation"` // 与平均工时的偏差百分比
}

// WorkloadReport 工作量分布报告
type WorkloadReport struct {
	Staff           []StaffWorkload `json:"staff"`
	AvgHours        float64         `json:"avg_hours"`
	MaxHours        float64         `json:"max_hours"`
	MinHours        float64         `json:"min_hours"`
	HoursRange      float64         `json:"hours_range"`
	Variance        float64         `json:"variance"`
	StdDev          float64         `json:"std_dev"`
	Gini            float64         `json:"gini"` // 0=完全均衡 1=完全失衡
	Overloaded      []uuid.UUID     `json:"overloaded"`      // 利用率 > 0.9
	Underutilized   []uuid.UUID     `json:"underutilized"`   // 利用率 < 0.6
	BalanceScore    float64         `json:"balance_score"`   // 0-100
	Recommendations []string        `json:"recommendations"` // 最多5条
}

// WorkloadAnalyzer 工作量分布分析器
type WorkloadAnalyzer struct{}

// NewWorkloadAnalyzer 创建工作量分析器
func NewWorkloadAnalyzer() *WorkloadAnalyzer {
	return &WorkloadAnalyzer{}
}

// Analyze 统计人员工作量分布
//
// 只计入占用时间的分配（待确认+已确认）；无人员时返回满分空报告。
func (w *WorkloadAnalyzer) Analyze(staff []*model.StaffMember, allocations []*model.Allocation) *WorkloadReport {
	report := &WorkloadReport{
		Staff:           []StaffWorkload{},
		Overloaded:      []uuid.UUID{},
		Underutilized:   []uuid.UUID{},
		Recommendations: []string{},
		BalanceScore:    100,
	}
	if len(staff) == 0 {
		return report
	}

	hoursByStaff := make(map[uuid.UUID]float64)
	countByStaff := make(map[uuid.UUID]int)
	for _, a := range allocations {
		if !a.IsActiveStatus() {
			continue
		}
		hoursByStaff[a.StaffID] += a.WorkingHours()
		countByStaff[a.StaffID]++
	}

	hours := make([]float64, 0, len(staff))
	for _, s := range staff {
		h := hoursByStaff[s.ID]
		utilization := 0.0
		if s.MaxHoursPerWeek > 0 {
			utilization = h / float64(s.MaxHoursPerWeek)
		}
		report.Staff = append(report.Staff, StaffWorkload{
			StaffID:       s.ID,
			Name:          s.Name,
			Role:          s.Role,
			AssignedHours: h,
			MaxHours:      s.MaxHoursPerWeek,
			Utilization:   utilization,
			ShiftCount:    countByStaff[s.ID],
		})
		hours = append(hours, h)

		if utilization > overloadedThreshold {
			report.Overloaded = append(report.Overloaded, s.ID)
		} else if utilization < underutilizedThreshold {
			report.Underutilized = append(report.Underutilized, s.ID)
		}
	}

	report.AvgHours = mean(hours)
	report.Variance = variance(hours, report.AvgHours)
	report.StdDev = math.Sqrt(report.Variance)
	report.MaxHours, report.MinHours = extremes(hours)
	report.HoursRange = report.MaxHours - report.MinHours
	report.Gini = gini(hours)

	for i := range report.Staff {
		if report.AvgHours > 0 {
			report.Staff[i].Deviation = (report.Staff[i].AssignedHours - report.AvgHours) / report.AvgHours * 100
		}
	}
	sort.Slice(report.Staff, func(i, j int) bool {
		return report.Staff[i].AssignedHours > report.Staff[j].AssignedHours
	})

	report.BalanceScore = balanceScore(report.Gini, report.StdDev, report.AvgHours)
	report.Recommendations = w.recommend(report)
	return report
}

// recommend 生成均衡建议，最多5条
func (w *WorkloadAnalyzer) recommend(report *WorkloadReport) []string {
	var recs []string
	nameByID := make(map[uuid.UUID]string, len(report.Staff))
	for _, s := range report.Staff {
		nameByID[s.StaffID] = s.Name
	}

	for _, id := range report.Overloaded {
		recs = append(recs, fmt.Sprintf("人员 %s 利用率超过 %.0f%%，建议减少排班", nameByID[id], overloadedThreshold*100))
	}
	for _, id := range report.Underutilized {
		recs = append(recs, fmt.Sprintf("人员 %s 利用率低于 %.0f%%，可承接更多班次", nameByID[id], underutilizedThreshold*100))
	}
	if report.Gini > 0.3 {
		recs = append(recs, fmt.Sprintf("工时基尼系数 %.2f 偏高，建议执行排班优化", report.Gini))
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

func extremes(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// gini 基尼系数
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	g := 0.0
	for i, v := range sorted {
		g += (2*float64(i+1) - float64(n) - 1) * v
	}
	g = g / (float64(n) * sum)
	return math.Max(0, math.Min(1, g))
}

// balanceScore 均衡评分：基尼为主，变异系数为辅
func balanceScore(gini, stdDev, avgHours float64) float64 {
	giniScore := (1 - gini) * 100
	cvScore := 100.0
	if avgHours > 0 {
		cv := stdDev / avgHours
		cvScore = math.Max(0, 100-cv*200)
	}
	score := 0.7*giniScore + 0.3*cvScore
	return math.Max(0, math.Min(100, score))
}
