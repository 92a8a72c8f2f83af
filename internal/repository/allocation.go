// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/model"
)

// AllocationRepository 分配仓储
type AllocationRepository struct {
	db DB
}

// NewAllocationRepository 创建分配仓储
func NewAllocationRepository(db DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// Create 创建分配
func (r *AllocationRepository) Create(ctx context.Context, a *model.Allocation) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO allocations (
			id, staff_id, shift_id, role, status, confidence, reasoning,
			override, date, start_time, end_time, checked_in_at, checked_out_at,
			hours_worked, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.StaffID, a.ShiftID, a.Role, a.Status, a.Confidence, a.Reasoning,
		a.Override, a.Date, a.StartTime, a.EndTime, a.CheckedInAt, a.CheckedOutAt,
		a.HoursWorked, a.Notes, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建分配失败: %w", err)
	}

	return nil
}

// CreateBatch 批量创建分配
func (r *AllocationRepository) CreateBatch(ctx context.Context, allocations []*model.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}

	var values []string
	var args []interface{}
	argIndex := 1

	now := time.Now()
	for _, a := range allocations {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		a.CreatedAt = now
		a.UpdatedAt = now

		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			argIndex, argIndex+1, argIndex+2, argIndex+3, argIndex+4, argIndex+5,
			argIndex+6, argIndex+7, argIndex+8, argIndex+9, argIndex+10, argIndex+11,
			argIndex+12, argIndex+13, argIndex+14, argIndex+15, argIndex+16,
		))
		args = append(args,
			a.ID, a.StaffID, a.ShiftID, a.Role, a.Status, a.Confidence, a.Reasoning,
			a.Override, a.Date, a.StartTime, a.EndTime, a.CheckedInAt, a.CheckedOutAt,
			a.HoursWorked, a.Notes, a.CreatedAt, a.UpdatedAt,
		)
		argIndex += 17
	}

	query := fmt.Sprintf(`
		INSERT INTO allocations (
			id, staff_id, shift_id, role, status, confidence, reasoning,
			override, date, start_time, end_time, checked_in_at, checked_out_at,
			hours_worked, notes, created_at, updated_at
		) VALUES %s
	`, strings.Join(values, ", "))

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("批量创建分配失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取分配
func (r *AllocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Allocation, error) {
	query := `
		SELECT id, staff_id, shift_id, role, status, confidence, reasoning,
			override, date, start_time, end_time, checked_in_at, checked_out_at,
			hours_worked, notes, created_at, updated_at
		FROM allocations
		WHERE id = $1 AND deleted_at IS NULL
	`

	a, err := scanAllocation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询分配失败: %w", err)
	}

	return a, nil
}

// Update 更新分配
func (r *AllocationRepository) Update(ctx context.Context, a *model.Allocation) error {
	a.UpdatedAt = time.Now()

	query := `
		UPDATE allocations SET
			status = $2, confidence = $3, reasoning = $4, override = $5,
			checked_in_at = $6, checked_out_at = $7, hours_worked = $8,
			notes = $9, updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		a.ID, a.Status, a.Confidence, a.Reasoning, a.Override,
		a.CheckedInAt, a.CheckedOutAt, a.HoursWorked, a.Notes, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新分配失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("分配不存在")
	}

	return nil
}

// UpdateAllocation 更新分配（生命周期协作方接口）
func (r *AllocationRepository) UpdateAllocation(ctx context.Context, a *model.Allocation) error {
	return r.Update(ctx, a)
}

// ListByShift 获取班次的所有分配
func (r *AllocationRepository) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]*model.Allocation, error) {
	query := `
		SELECT id, staff_id, shift_id, role, status, confidence, reasoning,
			override, date, start_time, end_time, checked_in_at, checked_out_at,
			hours_worked, notes, created_at, updated_at
		FROM allocations
		WHERE shift_id = $1 AND deleted_at IS NULL
		ORDER BY role, created_at
	`

	return r.queryAllocations(ctx, query, shiftID)
}

// ListByStaff 获取人员在日期范围内的分配
func (r *AllocationRepository) ListByStaff(ctx context.Context, staffID uuid.UUID, startDate, endDate string) ([]*model.Allocation, error) {
	query := `
		SELECT id, staff_id, shift_id, role, status, confidence, reasoning,
			override, date, start_time, end_time, checked_in_at, checked_out_at,
			hours_worked, notes, created_at, updated_at
		FROM allocations
		WHERE staff_id = $1 AND date >= $2 AND date <= $3 AND deleted_at IS NULL
		ORDER BY date, start_time
	`

	return r.queryAllocations(ctx, query, staffID, startDate, endDate)
}

// ListByDateRange 获取日期范围内的分配
func (r *AllocationRepository) ListByDateRange(ctx context.Context, startDate, endDate string) ([]*model.Allocation, error) {
	query := `
		SELECT id, staff_id, shift_id, role, status, confidence, reasoning,
			override, date, start_time, end_time, checked_in_at, checked_out_at,
			hours_worked, notes, created_at, updated_at
		FROM allocations
		WHERE date >= $1 AND date <= $2 AND deleted_at IS NULL
		ORDER BY date, start_time
	`

	return r.queryAllocations(ctx, query, startDate, endDate)
}

// ListActiveByDateRange 获取日期范围内占用时间的分配（待确认+已确认）
func (r *AllocationRepository) ListActiveByDateRange(ctx context.Context, startDate, endDate string) ([]*model.Allocation, error) {
	query := `
		SELECT id, staff_id, shift_id, role, status, confidence, reasoning,
			override, date, start_time, end_time, checked_in_at, checked_out_at,
			hours_worked, notes, created_at, updated_at
		FROM allocations
		WHERE date >= $1 AND date <= $2 AND status IN ('pending', 'confirmed')
			AND deleted_at IS NULL
		ORDER BY date, start_time
	`

	return r.queryAllocations(ctx, query, startDate, endDate)
}

// Delete 软删除分配
func (r *AllocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE allocations SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除分配失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("分配不存在")
	}

	return nil
}

func (r *AllocationRepository) queryAllocations(ctx context.Context, query string, args ...interface{}) ([]*model.Allocation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询分配失败: %w", err)
	}
	defer rows.Close()

	var allocations []*model.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描行失败: %w", err)
		}
		allocations = append(allocations, a)
	}

	return allocations, nil
}

func scanAllocation(s Scanner) (*model.Allocation, error) {
	a := &model.Allocation{}
	if err := s.Scan(
		&a.ID, &a.StaffID, &a.ShiftID, &a.Role, &a.Status, &a.Confidence,
		&a.Reasoning, &a.Override, &a.Date, &a.StartTime, &a.EndTime,
		&a.CheckedInAt, &a.CheckedOutAt, &a.HoursWorked, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return a, nil
}
