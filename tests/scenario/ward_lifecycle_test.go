package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/internal/policy"
	"github.com/yipai/yipai/pkg/allocator"
	"github.com/yipai/yipai/pkg/allocator/score"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/lifecycle"
	"github.com/yipai/yipai/pkg/model"
	"github.com/yipai/yipai/pkg/swap"
)

// wardStore 场景测试用内存存储
type wardStore struct {
	shifts  map[uuid.UUID]*model.Shift
	allocs  map[uuid.UUID]*model.Allocation
	records map[uuid.UUID]*model.AvailabilityRecord
	events  []*model.AvailabilityEvent
}

func newWardStore() *wardStore {
	return &wardStore{
		shifts:  make(map[uuid.UUID]*model.Shift),
		allocs:  make(map[uuid.UUID]*model.Allocation),
		records: make(map[uuid.UUID]*model.AvailabilityRecord),
	}
}

func (s *wardStore) GetShift(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	shift, ok := s.shifts[id]
	if !ok {
		return nil, errors.NotFound("班次", id.String())
	}
	return shift, nil
}

func (s *wardStore) UpdateShift(ctx context.Context, shift *model.Shift) error {
	s.shifts[shift.ID] = shift
	return nil
}

func (s *wardStore) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]*model.Allocation, error) {
	var out []*model.Allocation
	for _, a := range s.allocs {
		if a.ShiftID == shiftID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *wardStore) UpdateAllocation(ctx context.Context, a *model.Allocation) error {
	s.allocs[a.ID] = a
	return nil
}

func (s *wardStore) GetRecord(ctx context.Context, staffID uuid.UUID) (*model.AvailabilityRecord, error) {
	return s.records[staffID], nil
}

func (s *wardStore) SaveRecord(ctx context.Context, rec *model.AvailabilityRecord) error {
	s.records[rec.StaffID] = rec
	return nil
}

func (s *wardStore) AppendEvent(ctx context.Context, e *model.AvailabilityEvent) error {
	s.events = append(s.events, e)
	return nil
}

// TestICUShiftFullLifecycle 重症监护班次从分配到归档的完整流程
func TestICUShiftFullLifecycle(t *testing.T) {
	ctx := context.Background()
	registry := policy.NewDefaultRegistry()

	nurse := newStaff(t, "ICU护士长", "nurse", model.DeptICU, 9, "advanced", 70)
	shift := newShift(t, "2025-03-15", "morning", model.DeptICU, "08:00", "16:00",
		map[string]int{"nurse": 1}, 6, model.PriorityCritical, 2)

	// 自动分配并确认
	engine := allocator.NewEngine(registry, nil, 0)
	result, err := engine.AutoAllocate(ctx, &allocator.Request{
		Shifts:     []*model.Shift{shift},
		Candidates: []*model.StaffMember{nurse},
		Strategy:   score.StrategyQuality,
		Constraints: allocator.Constraints{
			ConfidenceThreshold: 0.01,
			AutoApprove:         true,
		},
	})
	if err != nil {
		t.Fatalf("AutoAllocate() error = %v", err)
	}
	if len(result.Allocations) != 1 {
		t.Fatalf("Expected 1 allocation, got %d", len(result.Allocations))
	}
	alloc := result.Allocations[0]

	store := newWardStore()
	store.shifts[shift.ID] = shift
	store.allocs[alloc.ID] = alloc
	mgr := lifecycle.NewManager(store, store, store, 8*time.Hour)

	// 开班：班次进行中，护士自动转为在岗
	started, err := mgr.StartShift(ctx, shift.ID)
	if err != nil {
		t.Fatalf("StartShift() error = %v", err)
	}
	if started.Status != model.ShiftInProgress {
		t.Errorf("Status = %s, expected in_progress", started.Status)
	}
	if rec := store.records[nurse.ID]; rec == nil || rec.Status != model.AvailWorking {
		t.Fatalf("Nurse should be working after shift start, got %+v", rec)
	}

	// 午间休息与返岗
	if _, err := mgr.BeginBreak(ctx, nurse.ID); err != nil {
		t.Fatalf("BeginBreak() error = %v", err)
	}
	if store.records[nurse.ID].Status != model.AvailOnBreak {
		t.Error("Nurse should be on break")
	}
	if _, err := mgr.EndBreak(ctx, nurse.ID); err != nil {
		t.Fatalf("EndBreak() error = %v", err)
	}
	if store.records[nurse.ID].Status != model.AvailWorking {
		t.Error("Nurse should be back to working")
	}

	// 完班：分配结算工时，护士进入休整
	completed, err := mgr.CompleteShift(ctx, shift.ID, "夜间两次抢救")
	if err != nil {
		t.Fatalf("CompleteShift() error = %v", err)
	}
	if completed.Status != model.ShiftCompleted {
		t.Errorf("Status = %s, expected completed", completed.Status)
	}
	if completed.Notes != "夜间两次抢救" {
		t.Errorf("Notes = %q, not recorded", completed.Notes)
	}

	final := store.allocs[alloc.ID]
	if final.Status != model.AllocationCompleted {
		t.Errorf("Allocation status = %s, expected completed", final.Status)
	}
	if final.HoursWorked != 8 {
		t.Errorf("HoursWorked = %.1f, expected 8.0", final.HoursWorked)
	}

	rec := store.records[nurse.ID]
	if rec.Status != model.AvailAvailable {
		t.Errorf("Nurse status = %s, expected available", rec.Status)
	}
	if rec.AvailableFrom == nil {
		t.Error("AvailableFrom should carry the rest period deadline")
	}

	// 归档后任何流转都应被拒绝
	if _, err := mgr.ArchiveShift(ctx, shift.ID); err != nil {
		t.Fatalf("ArchiveShift() error = %v", err)
	}
	if _, err := mgr.StartShift(ctx, shift.ID); !errors.Is(err, errors.CodeInvalidTransition) {
		t.Errorf("Restarting archived shift should fail with invalid transition, got %v", err)
	}

	if len(store.events) == 0 {
		t.Error("Availability events should be appended along the way")
	}
}

// TestSickNurseSwapRecommendation 护士病假后的顶班推荐场景
func TestSickNurseSwapRecommendation(t *testing.T) {
	ctx := context.Background()
	registry := policy.NewDefaultRegistry()

	sick := newStaff(t, "病假护士", "nurse", model.DeptICU, 8, "advanced", 60)
	free := newStaff(t, "待命护士", "nurse", model.DeptICU, 7, "intermediate", 55)
	busy := newStaff(t, "同时段在班护士", "nurse", model.DeptICU, 9, "expert", 80)

	shift := newShift(t, "2025-03-16", "night", model.DeptICU, "20:00", "08:00",
		map[string]int{"nurse": 1}, 6, model.PriorityCritical, 2)
	other := newShift(t, "2025-03-16", "night", model.DeptICU, "20:00", "08:00",
		map[string]int{"nurse": 1}, 6, model.PriorityHigh, 2)

	target := model.NewAllocation(sick, shift, model.RoleNurse)
	target.Status = model.AllocationConfirmed
	conflicting := model.NewAllocation(busy, other, model.RoleNurse)
	conflicting.Status = model.AllocationConfirmed

	// 病假护士标记不可用
	store := newWardStore()
	mgr := lifecycle.NewManager(store, store, store, 0)
	if _, err := mgr.Hold(ctx, sick.ID, "病假"); err != nil {
		t.Fatalf("Hold() error = %v", err)
	}

	var records []*model.AvailabilityRecord
	for _, rec := range store.records {
		records = append(records, rec)
	}

	recommender := swap.NewRecommender(registry)
	input := &swap.Input{
		Allocation:   target,
		Shift:        shift,
		Candidates:   []*model.StaffMember{sick, free, busy},
		Allocations:  []*model.Allocation{target, conflicting},
		Shifts:       []*model.Shift{shift, other},
		Availability: records,
		Strategy:     score.StrategyBalance,
	}

	recs := recommender.Recommend(input, swap.DefaultOptions())
	if len(recs) != 1 {
		t.Fatalf("Expected exactly 1 recommendation, got %d", len(recs))
	}
	if recs[0].Staff.ID != free.ID {
		t.Errorf("Expected the free nurse to be recommended, got %s", recs[0].Staff.Name)
	}
	if recs[0].Rank != 1 || recs[0].Confidence <= 0 {
		t.Errorf("Recommendation should be ranked with positive confidence, got %+v", recs[0])
	}

	// 同时段在班护士的顶班评估应为不可行
	eval := recommender.Evaluate(input, busy)
	if eval.Feasible {
		t.Error("Busy nurse should not be a feasible substitute")
	}
	if len(eval.Violations) == 0 {
		t.Error("Evaluation should report the overlap violation")
	}
}
