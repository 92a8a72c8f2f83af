package lifecycle

import (
	"context"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/logger"
	"github.com/yipai/yipai/pkg/model"
)

// CheckIn 人员到岗签到: available -> working
//
// 已在岗、休息中或不可用时签到无效，不产生副作用。
// 同时在该人员此班次的已确认分配上记录签到时间。
func (m *Manager) CheckIn(ctx context.Context, staffID, shiftID uuid.UUID) (*model.AvailabilityRecord, error) {
	lock := m.staffLocks.acquire(staffID)
	defer lock.Unlock()

	rec, err := m.loadOrInitRecord(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.AvailAvailable {
		return nil, errors.InvalidAvailabilityTransition(staffID.String(), string(rec.Status), "签到")
	}

	now := m.now()
	from := rec.Status
	rec.Status = model.AvailWorking
	rec.CurrentShiftID = &shiftID
	rec.CheckedInAt = &now
	rec.UpdatedAt = now
	if err := m.availability.SaveRecord(ctx, rec); err != nil {
		return nil, errors.StorageError("更新可用性台账", err)
	}

	m.stampAllocation(ctx, staffID, shiftID, true, "")
	m.appendEvent(ctx, staffID, from, model.AvailWorking, &shiftID, "人员签到")
	return rec, nil
}

// CheckOut 人员下班签退: working -> available
//
// 非在岗状态签退无效，不产生副作用。shiftID 为零值时取台账
// 记录的当前班次；notes 记录在该班次的分配上。
func (m *Manager) CheckOut(ctx context.Context, staffID, shiftID uuid.UUID, notes string) (*model.AvailabilityRecord, error) {
	lock := m.staffLocks.acquire(staffID)
	defer lock.Unlock()

	rec, err := m.loadOrInitRecord(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.AvailWorking {
		return nil, errors.InvalidAvailabilityTransition(staffID.String(), string(rec.Status), "签退")
	}

	target := rec.CurrentShiftID
	if shiftID != uuid.Nil {
		target = &shiftID
	}

	now := m.now()
	from := rec.Status
	availableFrom := now.Add(m.restPeriod)
	rec.Status = model.AvailAvailable
	rec.CurrentShiftID = nil
	rec.AvailableFrom = &availableFrom
	rec.CheckedOutAt = &now
	rec.UpdatedAt = now
	if err := m.availability.SaveRecord(ctx, rec); err != nil {
		return nil, errors.StorageError("更新可用性台账", err)
	}

	if target != nil {
		m.stampAllocation(ctx, staffID, *target, false, notes)
	}
	m.appendEvent(ctx, staffID, from, model.AvailAvailable, target, "人员签退")
	return rec, nil
}

// BeginBreak 开始休息: working -> on_break
func (m *Manager) BeginBreak(ctx context.Context, staffID uuid.UUID) (*model.AvailabilityRecord, error) {
	lock := m.staffLocks.acquire(staffID)
	defer lock.Unlock()

	rec, err := m.loadOrInitRecord(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.AvailWorking {
		return nil, errors.InvalidAvailabilityTransition(staffID.String(), string(rec.Status), "开始休息")
	}

	from := rec.Status
	rec.Status = model.AvailOnBreak
	rec.UpdatedAt = m.now()
	if err := m.availability.SaveRecord(ctx, rec); err != nil {
		return nil, errors.StorageError("更新可用性台账", err)
	}
	m.appendEvent(ctx, staffID, from, model.AvailOnBreak, rec.CurrentShiftID, "开始休息")
	return rec, nil
}

// EndBreak 结束休息: on_break -> working
func (m *Manager) EndBreak(ctx context.Context, staffID uuid.UUID) (*model.AvailabilityRecord, error) {
	lock := m.staffLocks.acquire(staffID)
	defer lock.Unlock()

	rec, err := m.loadOrInitRecord(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.AvailOnBreak {
		return nil, errors.InvalidAvailabilityTransition(staffID.String(), string(rec.Status), "结束休息")
	}

	from := rec.Status
	rec.Status = model.AvailWorking
	rec.UpdatedAt = m.now()
	if err := m.availability.SaveRecord(ctx, rec); err != nil {
		return nil, errors.StorageError("更新可用性台账", err)
	}
	m.appendEvent(ctx, staffID, from, model.AvailWorking, rec.CurrentShiftID, "结束休息")
	return rec, nil
}

// Hold 人工标记不可用: 任意状态 -> unavailable
//
// 标记不随班次事件自动清除，只能通过 ClearHold 解除。
func (m *Manager) Hold(ctx context.Context, staffID uuid.UUID, reason string) (*model.AvailabilityRecord, error) {
	lock := m.staffLocks.acquire(staffID)
	defer lock.Unlock()

	rec, err := m.loadOrInitRecord(ctx, staffID)
	if err != nil {
		return nil, err
	}

	from := rec.Status
	rec.Status = model.AvailUnavailable
	rec.ManualHold = true
	if reason != "" {
		rec.Notes = reason
	}
	rec.UpdatedAt = m.now()
	if err := m.availability.SaveRecord(ctx, rec); err != nil {
		return nil, errors.StorageError("更新可用性台账", err)
	}
	m.appendEvent(ctx, staffID, from, model.AvailUnavailable, rec.CurrentShiftID, "人工标记不可用")
	return rec, nil
}

// ClearHold 解除人工不可用标记: unavailable -> available
func (m *Manager) ClearHold(ctx context.Context, staffID uuid.UUID) (*model.AvailabilityRecord, error) {
	lock := m.staffLocks.acquire(staffID)
	defer lock.Unlock()

	rec, err := m.loadOrInitRecord(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.AvailUnavailable || !rec.ManualHold {
		return nil, errors.InvalidAvailabilityTransition(staffID.String(), string(rec.Status), "解除不可用")
	}

	from := rec.Status
	rec.Status = model.AvailAvailable
	rec.ManualHold = false
	rec.UpdatedAt = m.now()
	if err := m.availability.SaveRecord(ctx, rec); err != nil {
		return nil, errors.StorageError("更新可用性台账", err)
	}
	m.appendEvent(ctx, staffID, from, model.AvailAvailable, nil, "解除人工不可用")
	return rec, nil
}

// stampAllocation 在人员此班次的已确认分配上记录签到/签退时间与备注
func (m *Manager) stampAllocation(ctx context.Context, staffID, shiftID uuid.UUID, checkIn bool, notes string) {
	allocs, err := m.allocations.ListByShift(ctx, shiftID)
	if err != nil {
		logger.WithError(err).Str("shift_id", shiftID.String()).Msg("查询班次分配失败")
		return
	}
	now := m.now()
	for _, a := range allocs {
		if a.StaffID != staffID || a.Status != model.AllocationConfirmed {
			continue
		}
		if checkIn {
			a.CheckedInAt = &now
		} else {
			a.CheckedOutAt = &now
			if a.CheckedInAt != nil {
				a.HoursWorked = now.Sub(*a.CheckedInAt).Hours()
			}
			if notes != "" {
				a.Notes = notes
			}
		}
		a.UpdatedAt = now
		if err := m.allocations.UpdateAllocation(ctx, a); err != nil {
			logger.WithError(err).Str("allocation_id", a.ID.String()).Msg("更新分配打卡时间失败")
		}
		return
	}
}
