// Package scenario 提供场景测试
package scenario

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/yipai/yipai/internal/policy"
	"github.com/yipai/yipai/pkg/allocator"
	"github.com/yipai/yipai/pkg/allocator/score"
	"github.com/yipai/yipai/pkg/demand"
	"github.com/yipai/yipai/pkg/model"
	"github.com/yipai/yipai/pkg/stats"
	"github.com/yipai/yipai/pkg/validator"
)

func newStaff(t *testing.T, name, role string, dept model.Department, skill int, tier string, rate float64) *model.StaffMember {
	t.Helper()
	s, err := model.NewStaffMember(name, role, dept, skill, tier, 5, 40, rate)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newShift(t *testing.T, date, shiftType string, dept model.Department, start, end string,
	required map[string]int, minSkill int, priority model.Priority, capacity int) *model.Shift {
	t.Helper()
	sh, err := model.NewShift(date, shiftType, dept, start, end, required, minSkill, priority, capacity)
	if err != nil {
		t.Fatal(err)
	}
	return sh
}

// TestEmergencyMorningStaffing 急诊早班完整排班场景
//
// 岗位需求1医生+2护士；资质不足的候选被排除，批次自动确认后
// 缺口规划与覆盖率都应显示满员。
func TestEmergencyMorningStaffing(t *testing.T) {
	registry := policy.NewDefaultRegistry()

	attending := newStaff(t, "王主任", "physician", model.DeptEmergency, 9, "advanced", 120)
	resident := newStaff(t, "规培医生小刘", "physician", model.DeptEmergency, 6, "basic", 60)
	nurseA := newStaff(t, "李护士", "nurse", model.DeptEmergency, 7, "intermediate", 55)
	nurseB := newStaff(t, "陈护士", "nurse", model.DeptEmergency, 8, "advanced", 65)
	junior := newStaff(t, "实习护士小周", "nurse", model.DeptEmergency, 5, "basic", 35)

	shift := newShift(t, "2025-03-10", "morning", model.DeptEmergency, "08:00", "16:00",
		map[string]int{"physician": 1, "nurse": 2}, 4, model.PriorityHigh, 5)

	engine := allocator.NewEngine(registry, nil, 0)
	result, err := engine.AutoAllocate(context.Background(), &allocator.Request{
		Shifts:     []*model.Shift{shift},
		Candidates: []*model.StaffMember{attending, resident, nurseA, nurseB, junior},
		Strategy:   score.StrategyBalance,
		Constraints: allocator.Constraints{
			ConfidenceThreshold: 0.01,
			BackupMargin:        1,
			AutoApprove:         true,
		},
	})
	if err != nil {
		t.Fatalf("AutoAllocate() error = %v", err)
	}

	if len(result.Allocations) != 3 {
		t.Fatalf("Expected 3 allocations, got %d", len(result.Allocations))
	}
	picked := map[uuid.UUID]model.Role{}
	for _, a := range result.Allocations {
		if a.Status != model.AllocationConfirmed {
			t.Errorf("Allocation for %s should be auto-approved, got %s", a.StaffID, a.Status)
		}
		picked[a.StaffID] = a.Role
	}
	if picked[attending.ID] != model.RolePhysician {
		t.Error("Advanced-tier physician should fill the physician slot")
	}
	if _, ok := picked[resident.ID]; ok {
		t.Error("Basic-tier physician should be rejected by certification policy")
	}
	if _, ok := picked[junior.ID]; ok {
		t.Error("Basic-tier nurse should be rejected by certification policy")
	}
	if len(result.Unfilled) != 0 {
		t.Errorf("Expected no unfilled slots, got %v", result.Unfilled)
	}

	// 缺口规划应显示满员且无需后备建议
	planner := demand.NewPlanner(1)
	req := planner.Requirements(shift, result.Allocations)
	if !req.FullyStaffed {
		t.Errorf("Requirement should be fully staffed, got %+v", req)
	}
	if req.BackupSuggested != 0 {
		t.Errorf("Fully staffed shift should not suggest backup, got %d", req.BackupSuggested)
	}

	// 覆盖率应为100%
	coverage := stats.NewCoverageAnalyzer().Analyze([]*model.Shift{shift}, result.Allocations)
	if coverage.OverallFillRate != 1 {
		t.Errorf("OverallFillRate = %.2f, expected 1.00", coverage.OverallFillRate)
	}

	// 冲突检测不应有任何告警
	report := validator.NewConflictDetector(validator.DetectorConfig{BackupMargin: 1}).
		Detect(result.Allocations, []*model.Shift{shift})
	if report.Total != 0 {
		t.Errorf("Expected no conflicts, got %d: %+v", report.Total, report.ByType)
	}
}

// TestEmergencyNurseShortage 护士不足时的缺口上报场景
func TestEmergencyNurseShortage(t *testing.T) {
	registry := policy.NewDefaultRegistry()

	attending := newStaff(t, "急诊医生", "physician", model.DeptEmergency, 8, "advanced", 100)
	nurseA := newStaff(t, "唯一合格护士", "nurse", model.DeptEmergency, 7, "intermediate", 50)

	shift := newShift(t, "2025-03-11", "night", model.DeptEmergency, "20:00", "08:00",
		map[string]int{"physician": 1, "nurse": 2}, 4, model.PriorityCritical, 5)

	engine := allocator.NewEngine(registry, nil, 0)
	result, err := engine.AutoAllocate(context.Background(), &allocator.Request{
		Shifts:     []*model.Shift{shift},
		Candidates: []*model.StaffMember{attending, nurseA},
		Strategy:   score.StrategyBalance,
		Constraints: allocator.Constraints{
			ConfidenceThreshold: 0.01,
			AutoApprove:         true,
		},
	})
	if err != nil {
		t.Fatalf("AutoAllocate() error = %v", err)
	}

	if len(result.Allocations) != 2 {
		t.Fatalf("Expected 2 allocations (partial fill), got %d", len(result.Allocations))
	}
	if len(result.Unfilled) != 1 {
		t.Fatalf("Expected 1 unfilled slot, got %d", len(result.Unfilled))
	}
	gap := result.Unfilled[0]
	if gap.Role != model.RoleNurse || gap.Missing != 1 {
		t.Errorf("Unfilled slot = %+v, expected 1 missing nurse", gap)
	}

	// 高优先级缺员班次应给出后备建议
	req := demand.NewPlanner(1).Requirements(shift, result.Allocations)
	if req.FullyStaffed {
		t.Error("Requirement should not be fully staffed")
	}
	if req.BackupSuggested != 1 {
		t.Errorf("BackupSuggested = %d, expected 1", req.BackupSuggested)
	}
}

// TestDoubleBookingDetected 同一人员跨班次时间重叠的冲突检测场景
func TestDoubleBookingDetected(t *testing.T) {
	nurse := newStaff(t, "重复排班护士", "nurse", model.DeptEmergency, 7, "intermediate", 50)

	first := newShift(t, "2025-03-12", "morning", model.DeptEmergency, "08:00", "16:00",
		map[string]int{"nurse": 1}, 4, model.PriorityMedium, 2)
	second := newShift(t, "2025-03-12", "afternoon", model.DeptEmergency, "14:00", "22:00",
		map[string]int{"nurse": 1}, 4, model.PriorityMedium, 2)

	a1 := model.NewAllocation(nurse, first, model.RoleNurse)
	a1.Status = model.AllocationConfirmed
	a2 := model.NewAllocation(nurse, second, model.RoleNurse)
	a2.Status = model.AllocationConfirmed

	report := validator.NewConflictDetector(validator.DetectorConfig{}).
		Detect([]*model.Allocation{a1, a2}, []*model.Shift{first, second})

	if report.ByType[validator.ConflictOverlap] == 0 {
		t.Fatalf("Expected an overlap conflict, got %+v", report.ByType)
	}
	if len(report.PerStaff) == 0 {
		t.Error("Overlap should be attributed to the double-booked staff member")
	}
}
