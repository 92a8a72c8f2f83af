package swap

import (
	"testing"

	"github.com/yipai/yipai/pkg/allocator/score"
	"github.com/yipai/yipai/pkg/model"
)

func newNurse(t *testing.T, name string, skill int, rate float64) *model.StaffMember {
	t.Helper()
	s, err := model.NewStaffMember(name, "nurse", model.DeptICU, skill, "advanced", 5, 40, rate)
	if err != nil {
		t.Fatalf("NewStaffMember() error = %v", err)
	}
	return s
}

func newICUShift(t *testing.T, date string) *model.Shift {
	t.Helper()
	sh, err := model.NewShift(date, "morning", model.DeptICU, "08:00", "16:00",
		map[string]int{"nurse": 1}, 5, model.PriorityHigh, 2)
	if err != nil {
		t.Fatalf("NewShift() error = %v", err)
	}
	return sh
}

func TestRecommender_RanksEligibleSubstitutes(t *testing.T) {
	incumbent := newNurse(t, "李娜", 8, 50)
	cheap := newNurse(t, "王芳", 8, 30)
	costly := newNurse(t, "刘洋", 8, 80)
	unskilled := newNurse(t, "陈静", 2, 20) // 技能不足，应被过滤
	physician, err := model.NewStaffMember("赵敏", "physician", model.DeptICU, 9, "expert", 10, 40, 120)
	if err != nil {
		t.Fatalf("NewStaffMember() error = %v", err)
	}

	shift := newICUShift(t, "2025-01-10")
	alloc := model.NewAllocation(incumbent, shift, model.RoleNurse)
	alloc.Status = model.AllocationConfirmed

	input := &Input{
		Allocation:  alloc,
		Shift:       shift,
		Candidates:  []*model.StaffMember{incumbent, cheap, costly, unskilled, physician},
		Allocations: []*model.Allocation{alloc},
		Shifts:      []*model.Shift{shift},
		Strategy:    score.StrategyCost,
	}

	recs := NewRecommender(nil).Recommend(input, DefaultOptions())
	if len(recs) != 2 {
		t.Fatalf("Expected 2 recommendations, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Staff.ID == incumbent.ID {
			t.Error("Incumbent must not be recommended")
		}
		if r.Staff.ID == physician.ID {
			t.Error("Different role must not be recommended")
		}
	}
	// 成本策略下时薪更低者排在前面
	if recs[0].Staff.ID != cheap.ID {
		t.Errorf("Expected %s first, got %s", cheap.Name, recs[0].Staff.Name)
	}
	if recs[0].Rank != 1 || recs[1].Rank != 2 {
		t.Errorf("Expected ranks 1,2, got %d,%d", recs[0].Rank, recs[1].Rank)
	}
	if recs[0].Confidence <= recs[1].Confidence {
		t.Errorf("Expected descending confidence, got %.2f then %.2f",
			recs[0].Confidence, recs[1].Confidence)
	}
	if recs[0].Reasoning == "" {
		t.Error("Expected non-empty reasoning")
	}
}

func TestRecommender_SubstituteNotBlockedByIncumbentSlot(t *testing.T) {
	// 替换者已有与目标班次同时段的占用仅来自被替换的那条分配时，
	// 校验必须摘除目标分配，否则会产生假性冲突
	incumbent := newNurse(t, "李娜", 8, 50)
	sub := newNurse(t, "王芳", 8, 30)

	shift := newICUShift(t, "2025-01-10")
	alloc := model.NewAllocation(incumbent, shift, model.RoleNurse)
	alloc.Status = model.AllocationConfirmed

	// 替换者在另一天有一条分配，不构成冲突
	other := newICUShift(t, "2025-01-11")
	otherAlloc := model.NewAllocation(sub, other, model.RoleNurse)
	otherAlloc.Status = model.AllocationConfirmed

	input := &Input{
		Allocation:  alloc,
		Shift:       shift,
		Candidates:  []*model.StaffMember{incumbent, sub},
		Allocations: []*model.Allocation{alloc, otherAlloc},
		Shifts:      []*model.Shift{shift, other},
		Strategy:    score.StrategyBalance,
	}

	recs := NewRecommender(nil).Recommend(input, DefaultOptions())
	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].Staff.ID != sub.ID {
		t.Errorf("Expected %s, got %s", sub.Name, recs[0].Staff.Name)
	}
}

func TestRecommender_ExcludesStaffAlreadyOnShift(t *testing.T) {
	// 已在目标班次任职的同事不能被推荐去顶替自己的同班人员
	incumbent := newNurse(t, "李娜", 8, 50)
	colleague := newNurse(t, "王芳", 9, 45)
	free := newNurse(t, "刘洋", 8, 40)

	shift := newICUShift(t, "2025-01-10")
	alloc := model.NewAllocation(incumbent, shift, model.RoleNurse)
	alloc.Status = model.AllocationConfirmed
	colleagueAlloc := model.NewAllocation(colleague, shift, model.RoleNurse)
	colleagueAlloc.Status = model.AllocationConfirmed

	input := &Input{
		Allocation:  alloc,
		Shift:       shift,
		Candidates:  []*model.StaffMember{incumbent, colleague, free},
		Allocations: []*model.Allocation{alloc, colleagueAlloc},
		Shifts:      []*model.Shift{shift},
		Strategy:    score.StrategyBalance,
	}
	r := NewRecommender(nil)

	recs := r.Recommend(input, DefaultOptions())
	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].Staff.ID != free.ID {
		t.Errorf("Expected %s, got %s", free.Name, recs[0].Staff.Name)
	}

	eval := r.Evaluate(input, colleague)
	if eval.Feasible {
		t.Error("Staff already serving the shift must not be a feasible substitute")
	}
	if eval.Summary == "" {
		t.Error("Expected a summary explaining the rejection")
	}
}

func TestRecommender_NoEligibleSubstitutes(t *testing.T) {
	incumbent := newNurse(t, "李娜", 8, 50)
	unskilled := newNurse(t, "陈静", 2, 20)

	shift := newICUShift(t, "2025-01-10")
	alloc := model.NewAllocation(incumbent, shift, model.RoleNurse)

	input := &Input{
		Allocation:  alloc,
		Shift:       shift,
		Candidates:  []*model.StaffMember{incumbent, unskilled},
		Allocations: []*model.Allocation{alloc},
		Shifts:      []*model.Shift{shift},
		Strategy:    score.StrategyBalance,
	}

	if recs := NewRecommender(nil).Recommend(input, DefaultOptions()); recs != nil {
		t.Errorf("Expected no recommendations, got %d", len(recs))
	}
}

func TestRecommender_EvaluateTakeover(t *testing.T) {
	incumbent := newNurse(t, "李娜", 8, 50)
	fit := newNurse(t, "王芳", 8, 30)
	conflicted := newNurse(t, "刘洋", 8, 40)

	shift := newICUShift(t, "2025-01-10")
	alloc := model.NewAllocation(incumbent, shift, model.RoleNurse)
	alloc.Status = model.AllocationConfirmed

	// 同日同时段的既有占用，顶替会引入冲突
	clash := newICUShift(t, "2025-01-10")
	clashAlloc := model.NewAllocation(conflicted, clash, model.RoleNurse)
	clashAlloc.Status = model.AllocationConfirmed

	input := &Input{
		Allocation:  alloc,
		Shift:       shift,
		Candidates:  []*model.StaffMember{incumbent, fit, conflicted},
		Allocations: []*model.Allocation{alloc, clashAlloc},
		Shifts:      []*model.Shift{shift, clash},
		Strategy:    score.StrategyBalance,
	}
	r := NewRecommender(nil)

	good := r.Evaluate(input, fit)
	if !good.Feasible {
		t.Errorf("Expected feasible takeover, got violations: %v", good.Violations)
	}
	if good.Confidence <= 0 {
		t.Errorf("Expected positive confidence, got %.2f", good.Confidence)
	}

	bad := r.Evaluate(input, conflicted)
	if bad.Feasible {
		t.Error("Expected infeasible takeover for conflicting staff")
	}
	if len(bad.Violations) == 0 {
		t.Error("Expected violations to be reported")
	}

	wrongRole, err := model.NewStaffMember("赵敏", "physician", model.DeptICU, 9, "expert", 10, 40, 120)
	if err != nil {
		t.Fatalf("NewStaffMember() error = %v", err)
	}
	if r.Evaluate(input, wrongRole).Feasible {
		t.Error("Expected infeasible takeover for different role")
	}
}
