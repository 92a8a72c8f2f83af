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
	"github.com/yipai/yipai/pkg/model"
)

// StaffRepository 人员仓储
type StaffRepository struct {
	db DB
}

// NewStaffRepository 创建人员仓储
func NewStaffRepository(db DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// Create 创建人员
func (r *StaffRepository) Create(ctx context.Context, staff *model.StaffMember) error {
	if staff.ID == uuid.Nil {
		staff.ID = uuid.New()
	}
	now := time.Now()
	staff.CreatedAt = now
	staff.UpdatedAt = now

	prefs, err := json.Marshal(staff.PreferredShiftTypes)
	if err != nil {
		return fmt.Errorf("序列化偏好班次失败: %w", err)
	}
	dates, err := json.Marshal(staff.UnavailableDates)
	if err != nil {
		return fmt.Errorf("序列化不可用日期失败: %w", err)
	}

	query := `
		INSERT INTO staff (
			id, name, role, department, status, skill_level, cert_tier,
			experience_years, max_hours_per_week, hourly_rate,
			preferred_shift_types, unavailable_dates, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		staff.ID, staff.Name, staff.Role, staff.Department, staff.Status,
		staff.SkillLevel, staff.CertTier, staff.ExperienceYears,
		staff.MaxHoursPerWeek, staff.HourlyRate, prefs, dates,
		staff.CreatedAt, staff.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建人员失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取人员
func (r *StaffRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.StaffMember, error) {
	query := `
		SELECT id, name, role, department, status, skill_level, cert_tier,
			experience_years, max_hours_per_week, hourly_rate,
			preferred_shift_types, unavailable_dates, created_at, updated_at
		FROM staff
		WHERE id = $1 AND deleted_at IS NULL
	`

	staff, err := scanStaffRow(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询人员失败: %w", err)
	}

	return staff, nil
}

// Update 更新人员
func (r *StaffRepository) Update(ctx context.Context, staff *model.StaffMember) error {
	staff.UpdatedAt = time.Now()

	prefs, err := json.Marshal(staff.PreferredShiftTypes)
	if err != nil {
		return fmt.Errorf("序列化偏好班次失败: %w", err)
	}
	dates, err := json.Marshal(staff.UnavailableDates)
	if err != nil {
		return fmt.Errorf("序列化不可用日期失败: %w", err)
	}

	query := `
		UPDATE staff SET
			name = $2, role = $3, department = $4, status = $5, skill_level = $6,
			cert_tier = $7, experience_years = $8, max_hours_per_week = $9,
			hourly_rate = $10, preferred_shift_types = $11, unavailable_dates = $12,
			updated_at = $13
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		staff.ID, staff.Name, staff.Role, staff.Department, staff.Status,
		staff.SkillLevel, staff.CertTier, staff.ExperienceYears,
		staff.MaxHoursPerWeek, staff.HourlyRate, prefs, dates, staff.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新人员失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("人员不存在")
	}

	return nil
}

// Delete 软删除人员
func (r *StaffRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE staff SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除人员失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("人员不存在")
	}

	return nil
}

// List 查询人员列表
func (r *StaffRepository) List(ctx context.Context, filter ListFilter) ([]*model.StaffMember, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", argIndex))
		args = append(args, filter.Department)
		argIndex++
	}

	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIndex))
		args = append(args, filter.Role)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// 查询总数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM staff WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	// 查询列表
	query := fmt.Sprintf(`
		SELECT id, name, role, department, status, skill_level, cert_tier,
			experience_years, max_hours_per_week, hourly_rate,
			preferred_shift_types, unavailable_dates, created_at, updated_at
		FROM staff
		WHERE %s
		ORDER BY name ASC
		LIMIT $%d OFFSET $%d
	`, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var members []*model.StaffMember
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("扫描行失败: %w", err)
		}
		members = append(members, staff)
	}

	return members, total, nil
}

// ListActiveByDepartment 获取科室下所有在岗人员
func (r *StaffRepository) ListActiveByDepartment(ctx context.Context, dept model.Department) ([]*model.StaffMember, error) {
	filter := DefaultListFilter().WithDepartment(string(dept)).WithStatus(string(model.StaffActive)).WithLimit(500)
	members, _, err := r.List(ctx, filter)
	return members, err
}

// ListActive 获取所有在岗人员
func (r *StaffRepository) ListActive(ctx context.Context) ([]*model.StaffMember, error) {
	filter := DefaultListFilter().WithStatus(string(model.StaffActive)).WithLimit(1000)
	members, _, err := r.List(ctx, filter)
	return members, err
}

func scanStaff(s Scanner) (*model.StaffMember, error) {
	staff := &model.StaffMember{}
	var prefs, dates []byte
	if err := s.Scan(
		&staff.ID, &staff.Name, &staff.Role, &staff.Department, &staff.Status,
		&staff.SkillLevel, &staff.CertTier, &staff.ExperienceYears,
		&staff.MaxHoursPerWeek, &staff.HourlyRate, &prefs, &dates,
		&staff.CreatedAt, &staff.UpdatedAt,
	); err != nil {
		return nil, err
	}
	json.Unmarshal(prefs, &staff.PreferredShiftTypes)
	json.Unmarshal(dates, &staff.UnavailableDates)
	return staff, nil
}

func scanStaffRow(row *sql.Row) (*model.StaffMember, error) {
	return scanStaff(row)
}
