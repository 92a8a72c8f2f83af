// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/yipai/yipai/pkg/model"
)

// AvailabilityRepository 可用性台账仓储
//
// 台账按人员 upsert，流水只追加。
type AvailabilityRepository struct {
	db DB
}

// NewAvailabilityRepository 创建可用性台账仓储
func NewAvailabilityRepository(db DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// GetRecord 获取人员台账；不存在时返回 nil
func (r *AvailabilityRepository) GetRecord(ctx context.Context, staffID uuid.UUID) (*model.AvailabilityRecord, error) {
	query := `
		SELECT staff_id, status, current_shift_id, available_from,
			checked_in_at, checked_out_at, manual_hold, location, notes, updated_at
		FROM availability_records
		WHERE staff_id = $1
	`

	rec := &model.AvailabilityRecord{}
	err := r.db.QueryRowContext(ctx, query, staffID).Scan(
		&rec.StaffID, &rec.Status, &rec.CurrentShiftID, &rec.AvailableFrom,
		&rec.CheckedInAt, &rec.CheckedOutAt, &rec.ManualHold,
		&rec.Location, &rec.Notes, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询可用性台账失败: %w", err)
	}

	return rec, nil
}

// SaveRecord 写入人员台账（不存在时插入）
func (r *AvailabilityRepository) SaveRecord(ctx context.Context, rec *model.AvailabilityRecord) error {
	query := `
		INSERT INTO availability_records (
			staff_id, status, current_shift_id, available_from,
			checked_in_at, checked_out_at, manual_hold, location, notes, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (staff_id) DO UPDATE SET
			status = EXCLUDED.status,
			current_shift_id = EXCLUDED.current_shift_id,
			available_from = EXCLUDED.available_from,
			checked_in_at = EXCLUDED.checked_in_at,
			checked_out_at = EXCLUDED.checked_out_at,
			manual_hold = EXCLUDED.manual_hold,
			location = EXCLUDED.location,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.StaffID, rec.Status, rec.CurrentShiftID, rec.AvailableFrom,
		rec.CheckedInAt, rec.CheckedOutAt, rec.ManualHold,
		rec.Location, rec.Notes, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("写入可用性台账失败: %w", err)
	}

	return nil
}

// AppendEvent 追加一条可用性变更流水
func (r *AvailabilityRepository) AppendEvent(ctx context.Context, event *model.AvailabilityEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	query := `
		INSERT INTO availability_events (
			id, staff_id, from_status, to_status, shift_id, reason, at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.StaffID, event.From, event.To,
		event.ShiftID, event.Reason, event.At,
	)
	if err != nil {
		return fmt.Errorf("写入可用性流水失败: %w", err)
	}

	return nil
}

// ListRecords 获取全部台账
func (r *AvailabilityRepository) ListRecords(ctx context.Context) ([]*model.AvailabilityRecord, error) {
	query := `
		SELECT staff_id, status, current_shift_id, available_from,
			checked_in_at, checked_out_at, manual_hold, location, notes, updated_at
		FROM availability_records
		ORDER BY staff_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询可用性台账失败: %w", err)
	}
	defer rows.Close()

	var records []*model.AvailabilityRecord
	for rows.Next() {
		rec := &model.AvailabilityRecord{}
		if err := rows.Scan(
			&rec.StaffID, &rec.Status, &rec.CurrentShiftID, &rec.AvailableFrom,
			&rec.CheckedInAt, &rec.CheckedOutAt, &rec.ManualHold,
			&rec.Location, &rec.Notes, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描行失败: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// ListEventsByStaff 获取人员最近的变更流水
func (r *AvailabilityRepository) ListEventsByStaff(ctx context.Context, staffID uuid.UUID, limit int) ([]*model.AvailabilityEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, staff_id, from_status, to_status, shift_id, reason, at
		FROM availability_events
		WHERE staff_id = $1
		ORDER BY at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, staffID, limit)
	if err != nil {
		return nil, fmt.Errorf("查询可用性流水失败: %w", err)
	}
	defer rows.Close()

	var events []*model.AvailabilityEvent
	for rows.Next() {
		e := &model.AvailabilityEvent{}
		if err := rows.Scan(&e.ID, &e.StaffID, &e.From, &e.To, &e.ShiftID, &e.Reason, &e.At); err != nil {
			return nil, fmt.Errorf("扫描行失败: %w", err)
		}
		events = append(events, e)
	}

	return events, nil
}
