// Package e2e 提供端到端测试
package e2e

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/yipai/yipai/internal/policy"
	"github.com/yipai/yipai/pkg/allocator"
	"github.com/yipai/yipai/pkg/allocator/score"
	"github.com/yipai/yipai/pkg/demand"
	"github.com/yipai/yipai/pkg/model"
	"github.com/yipai/yipai/pkg/optimizer"
	"github.com/yipai/yipai/pkg/stats"
	"github.com/yipai/yipai/pkg/swap"
	"github.com/yipai/yipai/pkg/validator"
)

func buildRoster(t *testing.T) []*model.StaffMember {
	t.Helper()
	specs := []struct {
		name  string
		role  string
		skill int
		tier  string
		rate  float64
	}{
		{"ICU医生甲", "physician", 9, "advanced", 150},
		{"ICU医生乙", "physician", 8, "advanced", 130},
		{"ICU医生丙", "physician", 8, "expert", 170},
		{"ICU护士1", "nurse", 9, "advanced", 70},
		{"ICU护士2", "nurse", 8, "advanced", 65},
		{"ICU护士3", "nurse", 8, "intermediate", 60},
		{"ICU护士4", "nurse", 7, "intermediate", 55},
		{"ICU护士5", "nurse", 7, "intermediate", 55},
		{"ICU护士6", "nurse", 7, "advanced", 60},
	}

	roster := make([]*model.StaffMember, 0, len(specs))
	for _, sp := range specs {
		s, err := model.NewStaffMember(sp.name, sp.role, model.DeptICU, sp.skill, sp.tier, 6, 40, sp.rate)
		if err != nil {
			t.Fatal(err)
		}
		roster = append(roster, s)
	}
	return roster
}

// TestFullAllocationPipeline 端到端流程：建班、分配、体检、优化、顶班
func TestFullAllocationPipeline(t *testing.T) {
	ctx := context.Background()
	registry := policy.NewDefaultRegistry()
	planner := demand.NewPlanner(1)

	// 按ICU模板生成三天的班次
	var shifts []*model.Shift
	for day := 14; day <= 16; day++ {
		date := fmt.Sprintf("2025-04-%02d", day)
		planned, err := planner.PlanShifts(date, model.DeptICU, demand.DefaultTemplates())
		if err != nil {
			t.Fatalf("PlanShifts(%s) error = %v", date, err)
		}
		shifts = append(shifts, planned...)
	}
	if len(shifts) != 6 {
		t.Fatalf("Expected 6 planned shifts, got %d", len(shifts))
	}

	roster := buildRoster(t)

	// 批量自动分配
	engine := allocator.NewEngine(registry, nil, 0)
	result, err := engine.AutoAllocate(ctx, &allocator.Request{
		Shifts:     shifts,
		Candidates: roster,
		Strategy:   score.StrategyBalance,
		Constraints: allocator.Constraints{
			ConfidenceThreshold: 0.2,
			BackupMargin:        1,
			AutoApprove:         true,
		},
	})
	if err != nil {
		t.Fatalf("AutoAllocate() error = %v", err)
	}
	if len(result.Allocations) == 0 {
		t.Fatal("Pipeline should produce allocations")
	}
	t.Logf("分配 %d 条，缺口 %d 个，平均置信度 %.2f",
		len(result.Allocations), len(result.Unfilled), result.OptimizationScore)

	// 引擎产出不应包含同一人员的时段重叠
	report := validator.NewConflictDetector(validator.DetectorConfig{BackupMargin: 1}).
		Detect(result.Allocations, shifts)
	if report.ByType[validator.ConflictOverlap] != 0 {
		t.Errorf("Engine output contains %d overlap conflicts", report.ByType[validator.ConflictOverlap])
	}
	if report.ByType[validator.ConflictCapacityExceeded] != 0 {
		t.Errorf("Engine output exceeds shift capacity %d times", report.ByType[validator.ConflictCapacityExceeded])
	}

	// 周工时上限必须被遵守
	workload := stats.NewWorkloadAnalyzer().Analyze(roster, result.Allocations)
	for _, sw := range workload.Staff {
		if sw.Utilization > 1 {
			t.Errorf("%s utilization %.2f exceeds weekly cap", sw.Name, sw.Utilization)
		}
	}

	// 需求测算与分配结果一致
	for _, req := range planner.RequirementsAll(shifts, result.Allocations) {
		for _, role := range req.Roles {
			if role.Fulfilled > role.Required {
				t.Errorf("Shift %s %s overfilled role %s: %d/%d",
					req.Date, req.ShiftType, role.Role, role.Fulfilled, role.Required)
			}
		}
	}

	// 局部搜索优化不应劣化排班
	opt := optimizer.NewOptimizer(registry, optimizer.Config{
		MaxIterations:    300,
		InitialTemp:      50,
		CoolingRate:      0.99,
		TabuSize:         20,
		NeighborhoodSize: 10,
		PlateauThreshold: 60,
		Seed:             42,
	})
	optResult, err := opt.Optimize(ctx, &optimizer.Request{
		Shifts:      shifts,
		Staff:       roster,
		Allocations: result.Allocations,
		Range:       model.DateRange{StartDate: "2025-04-14", EndDate: "2025-04-16"},
		Strategy:    score.StrategyBalance,
	})
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	// 目标函数越小越好，优化后不得升高
	if optResult.Improvement.FinalScore > optResult.Improvement.InitialScore {
		t.Errorf("Optimization made things worse: %.3f -> %.3f",
			optResult.Improvement.InitialScore, optResult.Improvement.FinalScore)
	}
	if optResult.Improvement.HardViolationsAfter > optResult.Improvement.HardViolationsBefore {
		t.Errorf("Hard violations increased: %d -> %d",
			optResult.Improvement.HardViolationsBefore, optResult.Improvement.HardViolationsAfter)
	}

	// 任选一条分配做顶班推荐，推荐人必须未被同时段占用
	target := result.Allocations[0]
	var targetShift *model.Shift
	for _, s := range shifts {
		if s.ID == target.ShiftID {
			targetShift = s
			break
		}
	}
	recs := swap.NewRecommender(registry).Recommend(&swap.Input{
		Allocation:  target,
		Shift:       targetShift,
		Candidates:  roster,
		Allocations: result.Allocations,
		Shifts:      shifts,
		Strategy:    score.StrategyBalance,
	}, swap.DefaultOptions())
	occupied := map[uuid.UUID]bool{}
	for _, a := range result.Allocations {
		if a.ShiftID == target.ShiftID {
			occupied[a.StaffID] = true
		}
	}
	for _, rec := range recs {
		if rec.Staff.ID == target.StaffID {
			t.Error("Incumbent must not be recommended as their own substitute")
		}
		if occupied[rec.Staff.ID] {
			t.Errorf("%s already serves this shift and must not be recommended", rec.Staff.Name)
		}
	}
	t.Logf("顶班推荐 %d 人", len(recs))
}
