package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/logger"
	"github.com/yipai/yipai/pkg/model"
)

// Manager 班次生命周期管理器
type Manager struct {
	shifts       ShiftStore
	allocations  AllocationStore
	availability AvailabilityStore
	restPeriod   time.Duration // 完班后的休整时长

	shiftLocks *keyedLocks
	staffLocks *keyedLocks
	log        *logger.LifecycleLogger
	now        func() time.Time
}

// NewManager 创建生命周期管理器
func NewManager(shifts ShiftStore, allocations AllocationStore, availability AvailabilityStore, restPeriod time.Duration) *Manager {
	return &Manager{
		shifts:       shifts,
		allocations:  allocations,
		availability: availability,
		restPeriod:   restPeriod,
		shiftLocks:   newKeyedLocks(),
		staffLocks:   newKeyedLocks(),
		log:          logger.NewLifecycleLogger(),
		now:          time.Now,
	}
}

// StartShift 开班: scheduled -> in_progress
//
// 所有已确认分配的人员转为在岗并记录当前班次；
// 人工不可用（ManualHold）的人员不被改动。
func (m *Manager) StartShift(ctx context.Context, shiftID uuid.UUID) (*model.Shift, error) {
	lock := m.shiftLocks.acquire(shiftID)
	defer lock.Unlock()

	shift, err := m.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status != model.ShiftScheduled {
		return nil, errors.InvalidTransition(shiftID.String(), string(shift.Status), "开班")
	}

	allocs, err := m.allocations.ListByShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	shift.Status = model.ShiftInProgress
	shift.ActualStart = &now
	shift.UpdatedAt = now
	if err := m.shifts.UpdateShift(ctx, shift); err != nil {
		return nil, errors.StorageError("更新班次状态", err)
	}

	affected := 0
	for _, a := range allocs {
		if a.Status != model.AllocationConfirmed {
			continue
		}
		if err := m.markWorking(ctx, a.StaffID, shiftID); err != nil {
			// 单个人员的台账更新失败只影响该人员
			logger.WithError(err).Str("staff_id", a.StaffID.String()).Msg("开班时更新人员台账失败")
			continue
		}
		affected++
	}

	m.log.Transition(shiftID.String(), string(model.ShiftScheduled), string(model.ShiftInProgress), affected)
	return shift, nil
}

// CompleteShift 完班: in_progress -> completed
//
// 已确认分配转为已完成；引用本班次的台账恢复为可分配，
// AvailableFrom 设为当前时刻加休整时长；人工不可用不被清除。
func (m *Manager) CompleteShift(ctx context.Context, shiftID uuid.UUID, notes string) (*model.Shift, error) {
	lock := m.shiftLocks.acquire(shiftID)
	defer lock.Unlock()

	shift, err := m.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status != model.ShiftInProgress {
		return nil, errors.InvalidTransition(shiftID.String(), string(shift.Status), "完班")
	}

	allocs, err := m.allocations.ListByShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	shift.Status = model.ShiftCompleted
	shift.ActualEnd = &now
	if notes != "" {
		shift.Notes = notes
	}
	shift.UpdatedAt = now
	if err := m.shifts.UpdateShift(ctx, shift); err != nil {
		return nil, errors.StorageError("更新班次状态", err)
	}

	affected := 0
	for _, a := range allocs {
		if a.Status == model.AllocationConfirmed {
			a.Status = model.AllocationCompleted
			if a.HoursWorked == 0 {
				a.HoursWorked = a.WorkingHours()
			}
			a.UpdatedAt = now
			if err := m.allocations.UpdateAllocation(ctx, a); err != nil {
				logger.WithError(err).Str("allocation_id", a.ID.String()).Msg("完班时更新分配失败")
			}
		}
		if err := m.releaseStaff(ctx, a.StaffID, shiftID, now); err != nil {
			logger.WithError(err).Str("staff_id", a.StaffID.String()).Msg("完班时释放人员失败")
			continue
		}
		affected++
	}

	m.log.Transition(shiftID.String(), string(model.ShiftInProgress), string(model.ShiftCompleted), affected)
	return shift, nil
}

// ArchiveShift 归档: completed -> archived
func (m *Manager) ArchiveShift(ctx context.Context, shiftID uuid.UUID) (*model.Shift, error) {
	lock := m.shiftLocks.acquire(shiftID)
	defer lock.Unlock()

	shift, err := m.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status != model.ShiftCompleted {
		return nil, errors.InvalidTransition(shiftID.String(), string(shift.Status), "归档")
	}

	shift.Status = model.ShiftArchived
	shift.UpdatedAt = m.now()
	if err := m.shifts.UpdateShift(ctx, shift); err != nil {
		return nil, errors.StorageError("更新班次状态", err)
	}
	m.log.Transition(shiftID.String(), string(model.ShiftCompleted), string(model.ShiftArchived), 0)
	return shift, nil
}

// markWorking 人员转为在岗；持有该人员锁
func (m *Manager) markWorking(ctx context.Context, staffID, shiftID uuid.UUID) error {
	lock := m.staffLocks.acquire(staffID)
	defer lock.Unlock()

	rec, err := m.loadOrInitRecord(ctx, staffID)
	if err != nil {
		return err
	}
	if rec.Status == model.AvailUnavailable && rec.ManualHold {
		return nil
	}

	from := rec.Status
	now := m.now()
	rec.Status = model.AvailWorking
	rec.CurrentShiftID = &shiftID
	rec.CheckedInAt = &now
	rec.UpdatedAt = now
	if err := m.availability.SaveRecord(ctx, rec); err != nil {
		return errors.StorageError("更新可用性台账", err)
	}
	m.appendEvent(ctx, staffID, from, model.AvailWorking, &shiftID, "班次开始")
	return nil
}

// releaseStaff 完班时释放人员；持有该人员锁
func (m *Manager) releaseStaff(ctx context.Context, staffID, shiftID uuid.UUID, now time.Time) error {
	lock := m.staffLocks.acquire(staffID)
	defer lock.Unlock()

	rec, err := m.availability.GetRecord(ctx, staffID)
	if err != nil || rec == nil {
		return err
	}
	if rec.CurrentShiftID == nil || *rec.CurrentShiftID != shiftID {
		return nil
	}
	if rec.Status == model.AvailUnavailable && rec.ManualHold {
		// 人工不可用在完班后仍然保持，只解除班次占用
		rec.CurrentShiftID = nil
		rec.UpdatedAt = now
		return m.availability.SaveRecord(ctx, rec)
	}

	from := rec.Status
	availableFrom := now.Add(m.restPeriod)
	rec.Status = model.AvailAvailable
	rec.CurrentShiftID = nil
	rec.AvailableFrom = &availableFrom
	rec.CheckedOutAt = &now
	rec.UpdatedAt = now
	if err := m.availability.SaveRecord(ctx, rec); err != nil {
		return errors.StorageError("更新可用性台账", err)
	}
	m.appendEvent(ctx, staffID, from, model.AvailAvailable, &shiftID, "班次完成")
	return nil
}

func (m *Manager) loadOrInitRecord(ctx context.Context, staffID uuid.UUID) (*model.AvailabilityRecord, error) {
	rec, err := m.availability.GetRecord(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = model.NewAvailabilityRecord(staffID)
	}
	return rec, nil
}

func (m *Manager) appendEvent(ctx context.Context, staffID uuid.UUID, from, to model.AvailabilityStatus, shiftID *uuid.UUID, reason string) {
	event := model.NewAvailabilityEvent(staffID, from, to, shiftID, reason)
	if err := m.availability.AppendEvent(ctx, event); err != nil {
		logger.WithError(err).Str("staff_id", staffID.String()).Msg("写入可用性流水失败")
	}
	m.log.AvailabilityChange(staffID.String(), string(from), string(to), reason)
}
