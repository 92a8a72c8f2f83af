// Package lifecycle 实现班次生命周期与人员可用性台账
//
// 班次状态机: scheduled -> in_progress -> completed -> archived，不可跳级。
// 台账状态机: available/working/on_break/unavailable。
// 迁移前先完成全部校验，非法迁移不产生任何副作用。
// 同一班次的变更串行执行，同一人员的台账变更串行执行，
// 不同键之间并行。
package lifecycle

import (
	"context"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/model"
)

// ShiftStore 班次持久化协作方
type ShiftStore interface {
	GetShift(ctx context.Context, id uuid.UUID) (*model.Shift, error)
	UpdateShift(ctx context.Context, shift *model.Shift) error
}

// AllocationStore 分配持久化协作方
type AllocationStore interface {
	ListByShift(ctx context.Context, shiftID uuid.UUID) ([]*model.Allocation, error)
	UpdateAllocation(ctx context.Context, alloc *model.Allocation) error
}

// AvailabilityStore 可用性台账持久化协作方
type AvailabilityStore interface {
	GetRecord(ctx context.Context, staffID uuid.UUID) (*model.AvailabilityRecord, error)
	SaveRecord(ctx context.Context, record *model.AvailabilityRecord) error
	AppendEvent(ctx context.Context, event *model.AvailabilityEvent) error
}
