// Package optimizer 实现既有排班的局部搜索优化
//
// 采用模拟退火加禁忌表，在限定迭代数与运行时长内搜索邻域，
// 输出调整提案（增、撤、换人）而不直接落库。候选解的硬性
// 违规数超过当前解时一律拒绝，优化绝不恶化硬约束达成度。
package optimizer

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/allocator/rule"
	"github.com/yipai/yipai/pkg/allocator/score"
	"github.com/yipai/yipai/pkg/logger"
	"github.com/yipai/yipai/pkg/model"
)

// hardPenalty 硬性违规的目标函数罚分，保证硬约束支配软目标
const hardPenalty = 1000.0

// Config 优化器配置
type Config struct {
	MaxIterations    int           `json:"max_iterations"`
	MaxTime          time.Duration `json:"max_time"`
	InitialTemp      float64       `json:"initial_temp"`
	CoolingRate      float64       `json:"cooling_rate"`
	TabuSize         int           `json:"tabu_size"`
	NeighborhoodSize int           `json:"neighborhood_size"`
	PlateauThreshold int           `json:"plateau_threshold"` // 连续无改进迭代数
	Seed             int64         `json:"seed"`              // 0 表示按时间取种子
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxIterations:    1000,
		MaxTime:          30 * time.Second,
		InitialTemp:      100,
		CoolingRate:      0.99,
		TabuSize:         50,
		NeighborhoodSize: 20,
		PlateauThreshold: 100,
	}
}

// DeltaKind 调整提案类型
type DeltaKind string

const (
	DeltaAssign   DeltaKind = "assign"   // 新增分配
	DeltaUnassign DeltaKind = "unassign" // 撤销分配
	DeltaReassign DeltaKind = "reassign" // 更换人员
)

// Delta 一条调整提案，由调用方通过存储层落地
type Delta struct {
	Kind         DeltaKind  `json:"kind"`
	AllocationID *uuid.UUID `json:"allocation_id,omitempty"`
	StaffID      uuid.UUID  `json:"staff_id"`
	ShiftID      uuid.UUID  `json:"shift_id"`
	Role         model.Role `json:"role"`
}

// Improvement 优化前后的关键指标
type Improvement struct {
	InitialScore         float64       `json:"initial_score"`
	FinalScore           float64       `json:"final_score"`
	HardViolationsBefore int           `json:"hard_violations_before"`
	HardViolationsAfter  int           `json:"hard_violations_after"`
	MeanConfidenceBefore float64       `json:"mean_confidence_before"`
	MeanConfidenceAfter  float64       `json:"mean_confidence_after"`
	Iterations           int           `json:"iterations"`
	Elapsed              time.Duration `json:"elapsed"`
}

// Result 优化结果
type Result struct {
	Deltas      []Delta     `json:"deltas"`
	Improvement Improvement `json:"improvement"`
}

// Request 优化请求
type Request struct {
	Shifts       []*model.Shift
	Staff        []*model.StaffMember
	Allocations  []*model.Allocation // 待优化的活跃分配
	Availability []*model.AvailabilityRecord
	Range        model.DateRange
	Strategy     score.Strategy
	Overrides    map[uuid.UUID]bool
}

// Optimizer 排班优化器
type Optimizer struct {
	validator *rule.Validator
	config    Config
}

// NewOptimizer 创建优化器
func NewOptimizer(policy rule.CertPolicy, config Config) *Optimizer {
	if config.MaxIterations <= 0 {
		config = DefaultConfig()
	}
	return &Optimizer{
		validator: rule.NewValidator(policy),
		config:    config,
	}
}

// Optimize 对日期范围内的分配执行局部搜索
func (o *Optimizer) Optimize(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	seed := o.config.Seed
	if seed == 0 {
		seed = start.UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	env := newEnvironment(o.validator, req)
	current := env.initialSolution()
	env.evaluate(current)
	best := current.clone()
	initial := current.clone()

	tabu := newTabuList(o.config.TabuSize)
	tabu.add(current.hash())

	gen := &neighborGenerator{env: env, rng: rng}
	temp := o.config.InitialTemp
	plateau := 0
	iterations := 0

	deadline := start.Add(o.config.MaxTime)
	for i := 0; i < o.config.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if o.config.MaxTime > 0 && time.Now().After(deadline) {
			break
		}
		iterations = i + 1

		candidate := o.bestNeighbor(gen, current, tabu)
		if candidate == nil {
			break
		}
		// 硬性违规数不得超过当前解
		if candidate.hardCount > current.hardCount {
			continue
		}

		accepted := candidate.objective < current.objective ||
			rng.Float64() < boltzmannProbability(current.objective, candidate.objective, temp)
		if accepted {
			current = candidate
			tabu.add(current.hash())
			if current.objective < best.objective {
				best = current.clone()
				plateau = 0
			} else {
				plateau++
			}
		} else {
			plateau++
		}

		if o.config.PlateauThreshold > 0 && plateau >= o.config.PlateauThreshold {
			break
		}
		temp *= o.config.CoolingRate
	}

	elapsed := time.Since(start)
	result := &Result{
		Deltas: diff(initial, best),
		Improvement: Improvement{
			InitialScore:         initial.objective,
			FinalScore:           best.objective,
			HardViolationsBefore: initial.hardCount,
			HardViolationsAfter:  best.hardCount,
			MeanConfidenceBefore: initial.meanConfidence,
			MeanConfidenceAfter:  best.meanConfidence,
			Iterations:           iterations,
			Elapsed:              elapsed,
		},
	}
	logger.Info().
		Int("iterations", iterations).
		Int("deltas", len(result.Deltas)).
		Float64("initial_score", initial.objective).
		Float64("final_score", best.objective).
		Dur("elapsed", elapsed).
		Msg("排班优化完成")
	return result, nil
}

// bestNeighbor 在邻域内取目标值最优且不在禁忌表中的候选解
func (o *Optimizer) bestNeighbor(gen *neighborGenerator, current *solution, tabu *tabuList) *solution {
	var best *solution
	for n := 0; n < o.config.NeighborhoodSize; n++ {
		cand := gen.generate(current)
		if cand == nil {
			continue
		}
		gen.env.evaluate(cand)
		if tabu.contains(cand.hash()) {
			continue
		}
		if best == nil || cand.objective < best.objective {
			best = cand
		}
	}
	return best
}

func boltzmannProbability(current, candidate, temp float64) float64 {
	if temp <= 0 {
		return 0
	}
	return math.Exp((current - candidate) / temp)
}

// diff 对比初始解与最优解，生成调整提案
func diff(initial, best *solution) []Delta {
	var deltas []Delta
	initialByID := make(map[uuid.UUID]*entry, len(initial.entries))
	for _, e := range initial.entries {
		initialByID[e.allocationID] = e
	}
	bestByID := make(map[uuid.UUID]*entry, len(best.entries))
	for _, e := range best.entries {
		bestByID[e.allocationID] = e
	}

	for _, e := range initial.entries {
		after, ok := bestByID[e.allocationID]
		if !ok {
			id := e.allocationID
			deltas = append(deltas, Delta{
				Kind: DeltaUnassign, AllocationID: &id,
				StaffID: e.staffID, ShiftID: e.shiftID, Role: e.role,
			})
			continue
		}
		if after.staffID != e.staffID {
			id := e.allocationID
			deltas = append(deltas, Delta{
				Kind: DeltaReassign, AllocationID: &id,
				StaffID: after.staffID, ShiftID: e.shiftID, Role: e.role,
			})
		}
	}
	for _, e := range best.entries {
		if _, ok := initialByID[e.allocationID]; !ok {
			deltas = append(deltas, Delta{
				Kind: DeltaAssign,
				StaffID: e.staffID, ShiftID: e.shiftID, Role: e.role,
			})
		}
	}
	sort.SliceStable(deltas, func(i, j int) bool { return deltas[i].Kind < deltas[j].Kind })
	return deltas
}

// tabuList 固定容量的禁忌表
type tabuList struct {
	capacity int
	order    []uint64
	seen     map[uint64]bool
}

func newTabuList(capacity int) *tabuList {
	if capacity <= 0 {
		capacity = 50
	}
	return &tabuList{capacity: capacity, seen: make(map[uint64]bool)}
}

func (t *tabuList) add(h uint64) {
	if t.seen[h] {
		return
	}
	t.seen[h] = true
	t.order = append(t.order, h)
	if len(t.order) > t.capacity {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.seen, oldest)
	}
}

func (t *tabuList) contains(h uint64) bool {
	return t.seen[h]
}

// hash 解的 FNV-1a 指纹，对条目顺序不敏感
func (s *solution) hash() uint64 {
	keys := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		keys = append(keys, e.staffID.String()+"|"+e.shiftID.String()+"|"+string(e.role))
	}
	sort.Strings(keys)

	h := fnv.New64a()
	for _, k := range keys {
		h.Write([]byte(k))
	}
	return h.Sum64()
}
