package rule

import (
	"time"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/model"
)

// Context 校验上下文：当前分配集合及索引
//
// 分配集合由调用方显式传入，批次内的临时占用通过
// AddAllocation/RemoveAllocation 维护，仅对本上下文可见。
type Context struct {
	staffMap map[uuid.UUID]*model.StaffMember
	shiftMap map[uuid.UUID]*model.Shift

	allocations        []*model.Allocation
	allocationsByStaff map[uuid.UUID][]*model.Allocation

	availability map[uuid.UUID]*model.AvailabilityRecord
	overrides    map[uuid.UUID]bool // 按人员的周工时豁免
}

// NewContext 创建校验上下文
func NewContext(staff []*model.StaffMember, shifts []*model.Shift, allocations []*model.Allocation) *Context {
	ctx := &Context{
		staffMap:           make(map[uuid.UUID]*model.StaffMember, len(staff)),
		shiftMap:           make(map[uuid.UUID]*model.Shift, len(shifts)),
		allocationsByStaff: make(map[uuid.UUID][]*model.Allocation),
		availability:       make(map[uuid.UUID]*model.AvailabilityRecord),
		overrides:          make(map[uuid.UUID]bool),
	}
	for _, s := range staff {
		ctx.staffMap[s.ID] = s
	}
	for _, sh := range shifts {
		ctx.shiftMap[sh.ID] = sh
	}
	for _, a := range allocations {
		ctx.AddAllocation(a)
	}
	return ctx
}

// SetAvailability 载入可用性台账
func (c *Context) SetAvailability(records []*model.AvailabilityRecord) {
	for _, r := range records {
		c.availability[r.StaffID] = r
	}
}

// SetOverride 设置某人员的周工时豁免
func (c *Context) SetOverride(staffID uuid.UUID, override bool) {
	c.overrides[staffID] = override
}

// HasOverride 查询周工时豁免
func (c *Context) HasOverride(staffID uuid.UUID) bool {
	return c.overrides[staffID]
}

// Staff 按ID查询人员
func (c *Context) Staff(id uuid.UUID) *model.StaffMember {
	return c.staffMap[id]
}

// Shift 按ID查询班次
func (c *Context) Shift(id uuid.UUID) *model.Shift {
	return c.shiftMap[id]
}

// Availability 按人员查询可用性台账，可能为 nil
func (c *Context) Availability(staffID uuid.UUID) *model.AvailabilityRecord {
	return c.availability[staffID]
}

// AddAllocation 登记一条分配（批次内临时占用同样走这里）
func (c *Context) AddAllocation(a *model.Allocation) {
	c.allocations = append(c.allocations, a)
	c.allocationsByStaff[a.StaffID] = append(c.allocationsByStaff[a.StaffID], a)
}

// RemoveAllocation 撤销一条分配
func (c *Context) RemoveAllocation(id uuid.UUID) {
	for i, a := range c.allocations {
		if a.ID == id {
			c.allocations = append(c.allocations[:i], c.allocations[i+1:]...)
			byStaff := c.allocationsByStaff[a.StaffID]
			for j, b := range byStaff {
				if b.ID == id {
					c.allocationsByStaff[a.StaffID] = append(byStaff[:j], byStaff[j+1:]...)
					break
				}
			}
			return
		}
	}
}

// Allocations 返回全部分配
func (c *Context) Allocations() []*model.Allocation {
	return c.allocations
}

// AllocationsForStaff 返回某人员的全部分配
func (c *Context) AllocationsForStaff(staffID uuid.UUID) []*model.Allocation {
	return c.allocationsByStaff[staffID]
}

// ActiveAllocationsForStaff 返回某人员占用时间的分配（待确认+已确认）
func (c *Context) ActiveAllocationsForStaff(staffID uuid.UUID) []*model.Allocation {
	var active []*model.Allocation
	for _, a := range c.allocationsByStaff[staffID] {
		if a.IsActiveStatus() {
			active = append(active, a)
		}
	}
	return active
}

// HoursInISOWeek 统计某人员在指定日期所属 ISO 周内已占用的工时
// 只计入待确认与已确认的分配
func (c *Context) HoursInISOWeek(staffID uuid.UUID, date string) float64 {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0
	}
	year, week := day.ISOWeek()

	var hours float64
	for _, a := range c.allocationsByStaff[staffID] {
		if !a.IsActiveStatus() {
			continue
		}
		ay, aw := a.StartTime.ISOWeek()
		if ay == year && aw == week {
			hours += a.WorkingHours()
		}
	}
	return hours
}
