package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/model"
)

// memStore 测试用内存存储
type memStore struct {
	shifts  map[uuid.UUID]*model.Shift
	allocs  map[uuid.UUID]*model.Allocation
	records map[uuid.UUID]*model.AvailabilityRecord
	events  []*model.AvailabilityEvent
}

func newMemStore() *memStore {
	return &memStore{
		shifts:  make(map[uuid.UUID]*model.Shift),
		allocs:  make(map[uuid.UUID]*model.Allocation),
		records: make(map[uuid.UUID]*model.AvailabilityRecord),
	}
}

func (m *memStore) GetShift(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	s, ok := m.shifts[id]
	if !ok {
		return nil, errors.NotFound("班次", id.String())
	}
	return s, nil
}

func (m *memStore) UpdateShift(ctx context.Context, s *model.Shift) error {
	m.shifts[s.ID] = s
	return nil
}

func (m *memStore) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]*model.Allocation, error) {
	var out []*model.Allocation
	for _, a := range m.allocs {
		if a.ShiftID == shiftID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) UpdateAllocation(ctx context.Context, a *model.Allocation) error {
	m.allocs[a.ID] = a
	return nil
}

func (m *memStore) GetRecord(ctx context.Context, staffID uuid.UUID) (*model.AvailabilityRecord, error) {
	return m.records[staffID], nil
}

func (m *memStore) SaveRecord(ctx context.Context, r *model.AvailabilityRecord) error {
	m.records[r.StaffID] = r
	return nil
}

func (m *memStore) AppendEvent(ctx context.Context, e *model.AvailabilityEvent) error {
	m.events = append(m.events, e)
	return nil
}

func setup(t *testing.T, rest time.Duration) (*Manager, *memStore, *model.Shift, *model.StaffMember) {
	t.Helper()
	store := newMemStore()
	mgr := NewManager(store, store, store, rest)

	staff, err := model.NewStaffMember("测试护士", "nurse", model.DeptICU, 8, "advanced", 5, 40, 50)
	if err != nil {
		t.Fatal(err)
	}
	shift, err := model.NewShift("2025-01-10", "morning", model.DeptICU, "08:00", "16:00",
		map[string]int{"nurse": 1}, 5, model.PriorityHigh, 2)
	if err != nil {
		t.Fatal(err)
	}
	store.shifts[shift.ID] = shift

	alloc := model.NewAllocation(staff, shift, model.RoleNurse)
	alloc.Status = model.AllocationConfirmed
	store.allocs[alloc.ID] = alloc

	return mgr, store, shift, staff
}

func TestStartShift(t *testing.T) {
	mgr, store, shift, staff := setup(t, 0)

	got, err := mgr.StartShift(context.Background(), shift.ID)
	if err != nil {
		t.Fatalf("StartShift() error = %v", err)
	}
	if got.Status != model.ShiftInProgress {
		t.Errorf("Status = %s, expected in_progress", got.Status)
	}
	if got.ActualStart == nil {
		t.Error("ActualStart should be set")
	}

	rec := store.records[staff.ID]
	if rec == nil || rec.Status != model.AvailWorking {
		t.Fatalf("Staff should be working, got %+v", rec)
	}
	if rec.CurrentShiftID == nil || *rec.CurrentShiftID != shift.ID {
		t.Error("CurrentShiftID should reference the started shift")
	}
}

func TestStartShift_InvalidTransitionNoSideEffects(t *testing.T) {
	mgr, store, shift, _ := setup(t, 0)
	ctx := context.Background()

	if _, err := mgr.StartShift(ctx, shift.ID); err != nil {
		t.Fatal(err)
	}
	before := *store.shifts[shift.ID].ActualStart

	// 对进行中的班次再次开班
	_, err := mgr.StartShift(ctx, shift.ID)
	if !errors.Is(err, errors.CodeInvalidTransition) {
		t.Fatalf("Expected INVALID_TRANSITION, got %v", err)
	}
	if store.shifts[shift.ID].Status != model.ShiftInProgress {
		t.Error("Status must stay in_progress")
	}
	if !store.shifts[shift.ID].ActualStart.Equal(before) {
		t.Error("ActualStart must not change on rejected transition")
	}
}

func TestCompleteShift_ReleasesStaff(t *testing.T) {
	rest := 2 * time.Hour
	mgr, store, shift, staff := setup(t, rest)
	ctx := context.Background()

	if _, err := mgr.StartShift(ctx, shift.ID); err != nil {
		t.Fatal(err)
	}
	got, err := mgr.CompleteShift(ctx, shift.ID, "顺利完成")
	if err != nil {
		t.Fatalf("CompleteShift() error = %v", err)
	}
	if got.Status != model.ShiftCompleted {
		t.Errorf("Status = %s, expected completed", got.Status)
	}
	if got.ActualEnd == nil {
		t.Error("ActualEnd should be set")
	}

	rec := store.records[staff.ID]
	if rec.Status != model.AvailAvailable {
		t.Errorf("Staff status = %s, expected available", rec.Status)
	}
	if rec.CurrentShiftID != nil {
		t.Error("CurrentShiftID should be cleared")
	}
	if rec.AvailableFrom == nil {
		t.Fatal("AvailableFrom should be set")
	}
	if until := time.Until(*rec.AvailableFrom); until < rest-time.Minute || until > rest+time.Minute {
		t.Errorf("AvailableFrom should be about %v from now, got %v", rest, until)
	}

	for _, a := range store.allocs {
		if a.Status != model.AllocationCompleted {
			t.Errorf("Allocation status = %s, expected completed", a.Status)
		}
		if a.HoursWorked != 8 {
			t.Errorf("HoursWorked = %v, expected 8", a.HoursWorked)
		}
	}
}

func TestCompleteShift_RequiresInProgress(t *testing.T) {
	mgr, store, shift, _ := setup(t, 0)

	_, err := mgr.CompleteShift(context.Background(), shift.ID, "")
	if !errors.Is(err, errors.CodeInvalidTransition) {
		t.Fatalf("Expected INVALID_TRANSITION, got %v", err)
	}
	if store.shifts[shift.ID].Status != model.ShiftScheduled {
		t.Error("Status must stay scheduled")
	}
	if store.shifts[shift.ID].ActualEnd != nil {
		t.Error("ActualEnd must not be set on rejected transition")
	}
}

func TestArchiveShift_NoSkipping(t *testing.T) {
	mgr, _, shift, _ := setup(t, 0)
	ctx := context.Background()

	if _, err := mgr.ArchiveShift(ctx, shift.ID); !errors.Is(err, errors.CodeInvalidTransition) {
		t.Errorf("Archiving a scheduled shift should fail, got %v", err)
	}

	if _, err := mgr.StartShift(ctx, shift.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.CompleteShift(ctx, shift.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.ArchiveShift(ctx, shift.ID); err != nil {
		t.Errorf("Archiving a completed shift should succeed, got %v", err)
	}
}

func TestManualHold_SurvivesLifecycle(t *testing.T) {
	mgr, store, shift, staff := setup(t, 0)
	ctx := context.Background()

	if _, err := mgr.Hold(ctx, staff.ID, "病假"); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.StartShift(ctx, shift.ID); err != nil {
		t.Fatal(err)
	}

	rec := store.records[staff.ID]
	if rec.Status != model.AvailUnavailable || !rec.ManualHold {
		t.Error("Manual hold must not be flipped by shift start")
	}

	if _, err := mgr.CompleteShift(ctx, shift.ID, ""); err != nil {
		t.Fatal(err)
	}
	rec = store.records[staff.ID]
	if rec.Status != model.AvailUnavailable || !rec.ManualHold {
		t.Error("Manual hold must survive shift completion")
	}
}

func TestClearHold(t *testing.T) {
	mgr, _, _, staff := setup(t, 0)
	ctx := context.Background()

	if _, err := mgr.ClearHold(ctx, staff.ID); !errors.Is(err, errors.CodeInvalidAvailabilityTransition) {
		t.Errorf("ClearHold without hold should fail, got %v", err)
	}

	if _, err := mgr.Hold(ctx, staff.ID, ""); err != nil {
		t.Fatal(err)
	}
	rec, err := mgr.ClearHold(ctx, staff.ID)
	if err != nil {
		t.Fatalf("ClearHold() error = %v", err)
	}
	if rec.Status != model.AvailAvailable || rec.ManualHold {
		t.Errorf("Expected available without hold, got %+v", rec)
	}
}

func TestCheckInCheckOut(t *testing.T) {
	mgr, store, shift, staff := setup(t, time.Hour)
	ctx := context.Background()

	rec, err := mgr.CheckIn(ctx, staff.ID, shift.ID)
	if err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}
	if rec.Status != model.AvailWorking || rec.CheckedInAt == nil {
		t.Errorf("Unexpected record after check-in: %+v", rec)
	}

	// 已在岗重复签到
	if _, err := mgr.CheckIn(ctx, staff.ID, shift.ID); !errors.Is(err, errors.CodeInvalidAvailabilityTransition) {
		t.Errorf("Double check-in should fail, got %v", err)
	}

	rec, err = mgr.CheckOut(ctx, staff.ID, uuid.Nil, "交接完毕")
	if err != nil {
		t.Fatalf("CheckOut() error = %v", err)
	}
	if rec.Status != model.AvailAvailable || rec.CurrentShiftID != nil {
		t.Errorf("Unexpected record after check-out: %+v", rec)
	}

	// 非在岗签退
	if _, err := mgr.CheckOut(ctx, staff.ID, uuid.Nil, ""); !errors.Is(err, errors.CodeInvalidAvailabilityTransition) {
		t.Errorf("Check-out while not working should fail, got %v", err)
	}

	// 分配上应有打卡时间与签退备注
	for _, a := range store.allocs {
		if a.CheckedInAt == nil || a.CheckedOutAt == nil {
			t.Errorf("Allocation should carry check-in/out stamps: %+v", a)
		}
		if a.Notes != "交接完毕" {
			t.Errorf("Notes = %q, expected check-out notes to be stored", a.Notes)
		}
	}
}

func TestBreakCycle(t *testing.T) {
	mgr, _, shift, staff := setup(t, 0)
	ctx := context.Background()

	// 未在岗不能开始休息
	if _, err := mgr.BeginBreak(ctx, staff.ID); !errors.Is(err, errors.CodeInvalidAvailabilityTransition) {
		t.Errorf("BeginBreak while available should fail, got %v", err)
	}

	if _, err := mgr.CheckIn(ctx, staff.ID, shift.ID); err != nil {
		t.Fatal(err)
	}
	rec, err := mgr.BeginBreak(ctx, staff.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != model.AvailOnBreak {
		t.Errorf("Status = %s, expected on_break", rec.Status)
	}

	// 休息中不能签退
	if _, err := mgr.CheckOut(ctx, staff.ID, uuid.Nil, ""); !errors.Is(err, errors.CodeInvalidAvailabilityTransition) {
		t.Errorf("Check-out while on break should fail, got %v", err)
	}

	rec, err = mgr.EndBreak(ctx, staff.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != model.AvailWorking {
		t.Errorf("Status = %s, expected working", rec.Status)
	}
}

func TestAvailabilityEventsAppended(t *testing.T) {
	mgr, store, shift, _ := setup(t, 0)
	ctx := context.Background()

	if _, err := mgr.StartShift(ctx, shift.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.CompleteShift(ctx, shift.ID, ""); err != nil {
		t.Fatal(err)
	}

	if len(store.events) != 2 {
		t.Fatalf("Expected 2 availability events, got %d", len(store.events))
	}
	if store.events[0].To != model.AvailWorking || store.events[1].To != model.AvailAvailable {
		t.Errorf("Unexpected event sequence: %+v", store.events)
	}
}
