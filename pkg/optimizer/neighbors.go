package optimizer

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/allocator/rule"
	"github.com/yipai/yipai/pkg/allocator/score"
	"github.com/yipai/yipai/pkg/model"
)

// shortfallPenalty 每个未填补岗位缺口的罚分，保证撤销分配不是免费操作
const shortfallPenalty = 10.0

// entry 解中的一条分配
type entry struct {
	allocationID uuid.UUID
	staffID      uuid.UUID
	shiftID      uuid.UUID
	role         model.Role
}

// solution 一个候选解及其评估指标
type solution struct {
	entries        []*entry
	objective      float64 // 越小越好
	hardCount      int
	meanConfidence float64
}

func (s *solution) clone() *solution {
	entries := make([]*entry, len(s.entries))
	for i, e := range s.entries {
		c := *e
		entries[i] = &c
	}
	return &solution{
		entries:        entries,
		objective:      s.objective,
		hardCount:      s.hardCount,
		meanConfidence: s.meanConfidence,
	}
}

// environment 优化环境：固定输入 + 评估器
type environment struct {
	validator    *rule.Validator
	scorer       *score.Scorer
	staff        []*model.StaffMember
	shifts       []*model.Shift
	staffByID    map[uuid.UUID]*model.StaffMember
	shiftByID    map[uuid.UUID]*model.Shift
	staffByRole  map[model.Role][]*model.StaffMember
	availability []*model.AvailabilityRecord
	overrides    map[uuid.UUID]bool
	initial      []*model.Allocation
}

func newEnvironment(validator *rule.Validator, req *Request) *environment {
	env := &environment{
		validator:    validator,
		scorer:       score.NewScorer(req.Strategy),
		staff:        req.Staff,
		shifts:       inRange(req.Shifts, req.Range),
		staffByID:    make(map[uuid.UUID]*model.StaffMember, len(req.Staff)),
		shiftByID:    make(map[uuid.UUID]*model.Shift),
		staffByRole:  make(map[model.Role][]*model.StaffMember),
		availability: req.Availability,
		overrides:    req.Overrides,
	}
	for _, s := range req.Staff {
		env.staffByID[s.ID] = s
		env.staffByRole[s.Role] = append(env.staffByRole[s.Role], s)
	}
	for _, sh := range env.shifts {
		env.shiftByID[sh.ID] = sh
	}
	for _, a := range req.Allocations {
		if a.IsActiveStatus() && env.shiftByID[a.ShiftID] != nil {
			env.initial = append(env.initial, a)
		}
	}
	env.scorer.SetPool(req.Staff)
	return env
}

func inRange(shifts []*model.Shift, dr model.DateRange) []*model.Shift {
	if dr.StartDate == "" && dr.EndDate == "" {
		return shifts
	}
	var out []*model.Shift
	for _, s := range shifts {
		if dr.Contains(s.Date) {
			out = append(out, s)
		}
	}
	return out
}

// initialSolution 从当前活跃分配构造初始解
func (env *environment) initialSolution() *solution {
	s := &solution{}
	for _, a := range env.initial {
		s.entries = append(s.entries, &entry{
			allocationID: a.ID,
			staffID:      a.StaffID,
			shiftID:      a.ShiftID,
			role:         a.Role,
		})
	}
	return s
}

// evaluate 计算解的硬性违规数、平均置信度与目标值
func (env *environment) evaluate(s *solution) {
	allocs := make([]*model.Allocation, len(s.entries))
	for i, e := range s.entries {
		allocs[i] = env.toAllocation(e)
	}
	rctx := rule.NewContext(env.staff, env.shifts, allocs)
	rctx.SetAvailability(env.availability)
	for id, ov := range env.overrides {
		rctx.SetOverride(id, ov)
	}

	hard := 0
	var totalConf float64
	for i, e := range s.entries {
		staff := env.staffByID[e.staffID]
		shift := env.shiftByID[e.shiftID]
		if staff == nil || shift == nil {
			hard++
			continue
		}
		// 校验时临时摘除自身，避免与自己算重叠、重复计时
		rctx.RemoveAllocation(allocs[i].ID)
		res := env.validator.Validate(rctx, staff, shift)
		rctx.AddAllocation(allocs[i])
		hard += res.HardCount()
		totalConf += env.scorer.Evaluate(staff, shift).Confidence
	}

	s.hardCount = hard
	if len(s.entries) > 0 {
		s.meanConfidence = totalConf / float64(len(s.entries))
	} else {
		s.meanConfidence = 0
	}
	s.objective = float64(hard)*hardPenalty +
		float64(env.shortfalls(s))*shortfallPenalty +
		(1 - s.meanConfidence)
}

// shortfalls 统计全部班次未填补的岗位缺口数
func (env *environment) shortfalls(s *solution) int {
	filled := make(map[uuid.UUID]map[model.Role]int)
	for _, e := range s.entries {
		if filled[e.shiftID] == nil {
			filled[e.shiftID] = make(map[model.Role]int)
		}
		filled[e.shiftID][e.role]++
	}
	missing := 0
	for _, shift := range env.shifts {
		if shift.Status != model.ShiftScheduled {
			continue
		}
		for role, required := range shift.RequiredStaff {
			if have := filled[shift.ID][role]; have < required {
				missing += required - have
			}
		}
	}
	return missing
}

func (env *environment) toAllocation(e *entry) *model.Allocation {
	a := &model.Allocation{
		BaseModel: model.BaseModel{ID: e.allocationID},
		StaffID:   e.staffID,
		ShiftID:   e.shiftID,
		Role:      e.role,
		Status:    model.AllocationPending,
	}
	if shift := env.shiftByID[e.shiftID]; shift != nil {
		tr := shift.TimeRange()
		a.Date = shift.Date
		a.StartTime = tr.Start
		a.EndTime = tr.End
	}
	return a
}

// neighborGenerator 邻域解生成器
//
// 移动类型按权重随机选取: 换人 0.5 / 补缺 0.3 / 撤销 0.2
type neighborGenerator struct {
	env *environment
	rng *rand.Rand
}

func (g *neighborGenerator) generate(current *solution) *solution {
	r := g.rng.Float64()
	switch {
	case r < 0.5:
		return g.reassign(current)
	case r < 0.8:
		return g.insert(current)
	default:
		return g.remove(current)
	}
}

// reassign 随机挑一条分配，换成同岗位的其他人员
func (g *neighborGenerator) reassign(current *solution) *solution {
	if len(current.entries) == 0 {
		return g.insert(current)
	}
	next := current.clone()
	e := next.entries[g.rng.Intn(len(next.entries))]

	pool := g.env.staffByRole[e.role]
	if len(pool) < 2 {
		return nil
	}
	replacement := pool[g.rng.Intn(len(pool))]
	if replacement.ID == e.staffID {
		return nil
	}
	e.staffID = replacement.ID
	return next
}

// insert 随机挑一个有缺口的岗位，补入同岗位人员
func (g *neighborGenerator) insert(current *solution) *solution {
	type slot struct {
		shift *model.Shift
		role  model.Role
	}
	filled := make(map[uuid.UUID]map[model.Role]int)
	assigned := make(map[uuid.UUID]map[uuid.UUID]bool) // shift -> staff
	for _, e := range current.entries {
		if filled[e.shiftID] == nil {
			filled[e.shiftID] = make(map[model.Role]int)
			assigned[e.shiftID] = make(map[uuid.UUID]bool)
		}
		filled[e.shiftID][e.role]++
		assigned[e.shiftID][e.staffID] = true
	}

	var open []slot
	for _, shift := range g.env.shifts {
		if shift.Status != model.ShiftScheduled {
			continue
		}
		for role, required := range shift.RequiredStaff {
			if filled[shift.ID][role] < required {
				open = append(open, slot{shift: shift, role: role})
			}
		}
	}
	if len(open) == 0 {
		return nil
	}
	target := open[g.rng.Intn(len(open))]
	pool := g.env.staffByRole[target.role]
	if len(pool) == 0 {
		return nil
	}
	staff := pool[g.rng.Intn(len(pool))]
	if assigned[target.shift.ID] != nil && assigned[target.shift.ID][staff.ID] {
		return nil
	}

	next := current.clone()
	next.entries = append(next.entries, &entry{
		allocationID: uuid.New(),
		staffID:      staff.ID,
		shiftID:      target.shift.ID,
		role:         target.role,
	})
	return next
}

// remove 随机撤销一条分配
func (g *neighborGenerator) remove(current *solution) *solution {
	if len(current.entries) == 0 {
		return nil
	}
	next := current.clone()
	i := g.rng.Intn(len(next.entries))
	next.entries = append(next.entries[:i], next.entries[i+1:]...)
	return next
}
