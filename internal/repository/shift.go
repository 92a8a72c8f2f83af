// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/errors"
	"github.com/yipai/yipai/pkg/model"
)

// ShiftRepository 班次仓储
type ShiftRepository struct {
	db DB
}

// NewShiftRepository 创建班次仓储
func NewShiftRepository(db DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// Create 创建班次
func (r *ShiftRepository) Create(ctx context.Context, shift *model.Shift) error {
	if shift.ID == uuid.Nil {
		shift.ID = uuid.New()
	}
	now := time.Now()
	shift.CreatedAt = now
	shift.UpdatedAt = now

	required, err := json.Marshal(shift.RequiredStaff)
	if err != nil {
		return fmt.Errorf("序列化岗位需求失败: %w", err)
	}

	query := `
		INSERT INTO shifts (
			id, date, shift_type, department, start_time, end_time,
			required_staff, min_skill_level, priority, max_capacity,
			status, actual_start, actual_end, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.db.ExecContext(ctx, query,
		shift.ID, shift.Date, shift.ShiftType, shift.Department,
		shift.StartTime, shift.EndTime, required, shift.MinSkillLevel,
		shift.Priority, shift.MaxCapacity, shift.Status,
		shift.ActualStart, shift.ActualEnd, shift.Notes,
		shift.CreatedAt, shift.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建班次失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取班次
func (r *ShiftRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	query := `
		SELECT id, date, shift_type, department, start_time, end_time,
			required_staff, min_skill_level, priority, max_capacity,
			status, actual_start, actual_end, notes, created_at, updated_at
		FROM shifts
		WHERE id = $1 AND deleted_at IS NULL
	`

	shift, err := scanShift(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询班次失败: %w", err)
	}

	return shift, nil
}

// GetShift 根据ID获取班次，不存在时返回错误
func (r *ShiftRepository) GetShift(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	shift, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, errors.NotFound("班次", id.String())
	}
	return shift, nil
}

// Update 更新班次
func (r *ShiftRepository) Update(ctx context.Context, shift *model.Shift) error {
	shift.UpdatedAt = time.Now()

	required, err := json.Marshal(shift.RequiredStaff)
	if err != nil {
		return fmt.Errorf("序列化岗位需求失败: %w", err)
	}

	query := `
		UPDATE shifts SET
			date = $2, shift_type = $3, department = $4, start_time = $5,
			end_time = $6, required_staff = $7, min_skill_level = $8,
			priority = $9, max_capacity = $10, status = $11,
			actual_start = $12, actual_end = $13, notes = $14, updated_at = $15
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		shift.ID, shift.Date, shift.ShiftType, shift.Department,
		shift.StartTime, shift.EndTime, required, shift.MinSkillLevel,
		shift.Priority, shift.MaxCapacity, shift.Status,
		shift.ActualStart, shift.ActualEnd, shift.Notes, shift.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新班次失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("班次不存在")
	}

	return nil
}

// UpdateShift 更新班次（生命周期协作方接口）
func (r *ShiftRepository) UpdateShift(ctx context.Context, shift *model.Shift) error {
	return r.Update(ctx, shift)
}

// Delete 软删除班次
func (r *ShiftRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE shifts SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除班次失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("班次不存在")
	}

	return nil
}

// List 查询班次列表
func (r *ShiftRepository) List(ctx context.Context, filter ListFilter) ([]*model.Shift, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", argIndex))
		args = append(args, filter.Department)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", argIndex))
		args = append(args, filter.StartDate)
		argIndex++
	}

	if filter.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", argIndex))
		args = append(args, filter.EndDate)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// 查询总数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM shifts WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	// 查询列表
	query := fmt.Sprintf(`
		SELECT id, date, shift_type, department, start_time, end_time,
			required_staff, min_skill_level, priority, max_capacity,
			status, actual_start, actual_end, notes, created_at, updated_at
		FROM shifts
		WHERE %s
		ORDER BY date ASC, start_time ASC
		LIMIT $%d OFFSET $%d
	`, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var shifts []*model.Shift
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("扫描行失败: %w", err)
		}
		shifts = append(shifts, shift)
	}

	return shifts, total, nil
}

// ListByDateRange 获取日期范围内的班次
func (r *ShiftRepository) ListByDateRange(ctx context.Context, startDate, endDate string) ([]*model.Shift, error) {
	filter := DefaultListFilter().WithDateRange(startDate, endDate).WithLimit(1000)
	shifts, _, err := r.List(ctx, filter)
	return shifts, err
}

func scanShift(s Scanner) (*model.Shift, error) {
	shift := &model.Shift{}
	var required []byte
	if err := s.Scan(
		&shift.ID, &shift.Date, &shift.ShiftType, &shift.Department,
		&shift.StartTime, &shift.EndTime, &required, &shift.MinSkillLevel,
		&shift.Priority, &shift.MaxCapacity, &shift.Status,
		&shift.ActualStart, &shift.ActualEnd, &shift.Notes,
		&shift.CreatedAt, &shift.UpdatedAt,
	); err != nil {
		return nil, err
	}
	json.Unmarshal(required, &shift.RequiredStaff)
	return shift, nil
}
