package stats

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/model"
)

// RoleCoverage 班次内单个岗位的满足情况
type RoleCoverage struct {
	Role      model.Role `json:"role"`
	Required  int        `json:"required"`
	Confirmed int        `json:"confirmed"`
	Remaining int        `json:"remaining"`
}

// ShiftCoverage 单个班次的覆盖情况
type ShiftCoverage struct {
	ShiftID           uuid.UUID      `json:"shift_id"`
	Date              string         `json:"date"`
	ShiftType         model.ShiftType `json:"shift_type"`
	Department        model.Department `json:"department"`
	Priority          model.Priority `json:"priority"`
	Roles             []RoleCoverage `json:"roles"`
	TotalRequired     int            `json:"total_required"`
	TotalConfirmed    int            `json:"total_confirmed"`
	CapacityRemaining int            `json:"capacity_remaining"`
	FullyStaffed      bool           `json:"fully_staffed"`
	FillRate          float64        `json:"fill_rate"`
}

// DailyCoverage 单日覆盖汇总
type DailyCoverage struct {
	Date      string  `json:"date"`
	Required  int     `json:"required"`
	Confirmed int     `json:"confirmed"`
	FillRate  float64 `json:"fill_rate"`
}

// CoverageReport 覆盖率报告
type CoverageReport struct {
	Shifts          []ShiftCoverage `json:"shifts"`
	Daily           []DailyCoverage `json:"daily"`
	OverallFillRate float64         `json:"overall_fill_rate"`
	Understaffed    []uuid.UUID     `json:"understaffed"`
	Recommendations []string        `json:"recommendations"`
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct{}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{}
}

// Analyze 统计班次岗位满足情况，人数只计已确认分配
func (c *CoverageAnalyzer) Analyze(shifts []*model.Shift, allocations []*model.Allocation) *CoverageReport {
	report := &CoverageReport{
		Shifts:          []ShiftCoverage{},
		Daily:           []DailyCoverage{},
		Understaffed:    []uuid.UUID{},
		Recommendations: []string{},
	}

	confirmedByShift := make(map[uuid.UUID]map[model.Role]int)
	totalByShift := make(map[uuid.UUID]int)
	for _, a := range allocations {
		if a.Status != model.AllocationConfirmed {
			continue
		}
		if confirmedByShift[a.ShiftID] == nil {
			confirmedByShift[a.ShiftID] = make(map[model.Role]int)
		}
		confirmedByShift[a.ShiftID][a.Role]++
		totalByShift[a.ShiftID]++
	}

	dailyRequired := make(map[string]int)
	dailyConfirmed := make(map[string]int)
	totalRequired, totalConfirmed := 0, 0

	for _, shift := range shifts {
		sc := c.coverShift(shift, confirmedByShift[shift.ID], totalByShift[shift.ID])
		report.Shifts = append(report.Shifts, sc)

		if !sc.FullyStaffed {
			report.Understaffed = append(report.Understaffed, shift.ID)
		}
		dailyRequired[shift.Date] += sc.TotalRequired
		dailyConfirmed[shift.Date] += sc.TotalConfirmed
		totalRequired += sc.TotalRequired
		totalConfirmed += sc.TotalConfirmed
	}

	dates := make([]string, 0, len(dailyRequired))
	for d := range dailyRequired {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		report.Daily = append(report.Daily, DailyCoverage{
			Date:      d,
			Required:  dailyRequired[d],
			Confirmed: dailyConfirmed[d],
			FillRate:  fillRate(dailyConfirmed[d], dailyRequired[d]),
		})
	}
	report.OverallFillRate = fillRate(totalConfirmed, totalRequired)
	report.Recommendations = c.recommend(report)
	return report
}

// CoverShift 计算单个班次的岗位满足情况
func (c *CoverageAnalyzer) CoverShift(shift *model.Shift, allocations []*model.Allocation) ShiftCoverage {
	confirmed := make(map[model.Role]int)
	total := 0
	for _, a := range allocations {
		if a.ShiftID == shift.ID && a.Status == model.AllocationConfirmed {
			confirmed[a.Role]++
			total++
		}
	}
	return c.coverShift(shift, confirmed, total)
}

func (c *CoverageAnalyzer) coverShift(shift *model.Shift, confirmed map[model.Role]int, total int) ShiftCoverage {
	sc := ShiftCoverage{
		ShiftID:    shift.ID,
		Date:       shift.Date,
		ShiftType:  shift.ShiftType,
		Department: shift.Department,
		Priority:   shift.Priority,
		Roles:      []RoleCoverage{},
	}

	roles := make([]model.Role, 0, len(shift.RequiredStaff))
	for r := range shift.RequiredStaff {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	fullyStaffed := true
	for _, role := range roles {
		required := shift.RequiredStaff[role]
		have := confirmed[role]
		remaining := required - have
		if remaining < 0 {
			remaining = 0
		}
		if have < required {
			fullyStaffed = false
		}
		sc.Roles = append(sc.Roles, RoleCoverage{
			Role: role, Required: required, Confirmed: have, Remaining: remaining,
		})
		sc.TotalRequired += required
	}
	sc.TotalConfirmed = total
	sc.CapacityRemaining = shift.MaxCapacity - total
	if sc.CapacityRemaining < 0 {
		sc.CapacityRemaining = 0
	}
	sc.FullyStaffed = fullyStaffed
	sc.FillRate = fillRate(sc.TotalConfirmed, sc.TotalRequired)
	return sc
}

// recommend 生成补员建议，优先级高的班次在前，最多5条
func (c *CoverageAnalyzer) recommend(report *CoverageReport) []string {
	understaffed := make([]ShiftCoverage, 0)
	for _, sc := range report.Shifts {
		if !sc.FullyStaffed {
			understaffed = append(understaffed, sc)
		}
	}
	sort.SliceStable(understaffed, func(i, j int) bool {
		return understaffed[i].Priority.Rank() > understaffed[j].Priority.Rank()
	})

	var recs []string
	for _, sc := range understaffed {
		for _, rc := range sc.Roles {
			if rc.Remaining > 0 {
				recs = append(recs, fmt.Sprintf("班次 %s %s (%s) 岗位 %s 还缺 %d 人",
					sc.Date, sc.ShiftType, sc.Department, rc.Role, rc.Remaining))
			}
		}
	}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func fillRate(confirmed, required int) float64 {
	if required == 0 {
		return 1
	}
	rate := float64(confirmed) / float64(required)
	if rate > 1 {
		rate = 1
	}
	return rate
}
