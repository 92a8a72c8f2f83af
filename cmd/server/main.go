// YiPai 医院排班引擎服务
// 主程序入口

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/yipai/yipai/internal/config"
	"github.com/yipai/yipai/internal/database"
	"github.com/yipai/yipai/internal/handler"
	"github.com/yipai/yipai/internal/metrics"
	"github.com/yipai/yipai/internal/policy"
	"github.com/yipai/yipai/internal/repository"
	"github.com/yipai/yipai/pkg/allocator"
	"github.com/yipai/yipai/pkg/allocator/oracle"
	"github.com/yipai/yipai/pkg/demand"
	"github.com/yipai/yipai/pkg/lifecycle"
	"github.com/yipai/yipai/pkg/logger"
	"github.com/yipai/yipai/pkg/optimizer"
	"github.com/yipai/yipai/pkg/swap"
	"github.com/yipai/yipai/pkg/validator"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logFormat := "json"
	if cfg.IsDevelopment() {
		logFormat = "console"
	}
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: logFormat,
	})

	// 打印版本信息
	fmt.Printf("YiPai 医院排班引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	// 连接数据库
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Error().Err(err).Msg("数据库连接失败")
		os.Exit(1)
	}
	defer db.Close()

	// ========================================
	// 组装核心组件
	// ========================================

	staffRepo := repository.NewStaffRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)

	registry := policy.NewDefaultRegistry()

	var ranker oracle.Ranker = oracle.Nop{}
	if cfg.Oracle.Enabled && cfg.Oracle.URL != "" {
		ranker = oracle.NewHTTPRanker(cfg.Oracle.URL, cfg.Oracle.Timeout)
		logger.Info().Str("url", cfg.Oracle.URL).Msg("已启用外部建议服务")
	}

	engine := allocator.NewEngine(registry, ranker, cfg.Oracle.MaxInfluence)
	opt := optimizer.NewOptimizer(registry, optimizer.Config{
		MaxIterations:    cfg.Optimizer.MaxIterations,
		MaxTime:          cfg.Optimizer.MaxTime,
		InitialTemp:      cfg.Optimizer.InitialTemp,
		CoolingRate:      cfg.Optimizer.CoolingRate,
		TabuSize:         cfg.Optimizer.TabuSize,
		PlateauThreshold: cfg.Optimizer.PlateauThreshold,
	})
	detector := validator.NewConflictDetector(validator.DetectorConfig{
		BackupMargin: cfg.Allocator.BackupMargin,
	})
	manager := lifecycle.NewManager(shiftRepo, allocationRepo, availabilityRepo, cfg.Allocator.RestPeriod)
	recommender := swap.NewRecommender(registry)
	planner := demand.NewPlanner(cfg.Allocator.BackupMargin)

	allocationHandler := handler.NewAllocationHandler(
		engine, opt, detector,
		staffRepo, shiftRepo, allocationRepo, availabilityRepo,
		cfg.API.Timeout,
	)
	lifecycleHandler := handler.NewLifecycleHandler(manager, availabilityRepo, cfg.API.Timeout)
	statsHandler := handler.NewStatsHandler(
		recommender, planner, registry,
		staffRepo, shiftRepo, allocationRepo, availabilityRepo,
		cfg.API.Timeout,
	)

	// 创建 HTTP 服务器
	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	// 健康检查端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		report := db.Report(r.Context())
		code := http.StatusOK
		if report.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   report.Status,
			"service":  "yipai",
			"database": report,
		})
	})

	// 版本信息端点
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})

	// ========================================
	// API v1 端点
	// ========================================

	// API 根路由
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"message": "YiPai 医院排班引擎 API v1",
			"endpoints": {
				"allocations": {
					"validate": "POST /api/v1/allocations/validate",
					"auto": "POST /api/v1/allocations/auto"
				},
				"schedule": {
					"optimize": "POST /api/v1/schedule/optimize"
				},
				"conflicts": {
					"detect": "POST /api/v1/conflicts/detect"
				},
				"shifts": {
					"start": "POST /api/v1/shifts/start",
					"complete": "POST /api/v1/shifts/complete",
					"archive": "POST /api/v1/shifts/archive",
					"requirements": "GET /api/v1/shifts/requirements",
					"plan": "POST /api/v1/shifts/plan"
				},
				"availability": {
					"checkin": "POST /api/v1/availability/checkin",
					"checkout": "POST /api/v1/availability/checkout",
					"break_begin": "POST /api/v1/availability/break/begin",
					"break_end": "POST /api/v1/availability/break/end",
					"hold": "POST /api/v1/availability/hold",
					"hold_clear": "POST /api/v1/availability/hold/clear",
					"events": "GET /api/v1/availability/events"
				},
				"stats": {
					"workload": "POST /api/v1/stats/workload",
					"coverage": "POST /api/v1/stats/coverage"
				},
				"swap": {
					"recommend": "POST /api/v1/swap/recommend",
					"evaluate": "POST /api/v1/swap/evaluate"
				},
				"policy": {
					"certification": "GET /api/v1/policy/certification"
				}
			}
		}`))
	})

	// 分配 API
	mux.HandleFunc("/api/v1/allocations/validate", allocationHandler.Validate)
	mux.HandleFunc("/api/v1/allocations/auto", allocationHandler.AutoAllocate)
	mux.HandleFunc("/api/v1/schedule/optimize", allocationHandler.Optimize)
	mux.HandleFunc("/api/v1/conflicts/detect", allocationHandler.DetectConflicts)

	// 班次生命周期 API
	mux.HandleFunc("/api/v1/shifts/start", lifecycleHandler.StartShift)
	mux.HandleFunc("/api/v1/shifts/complete", lifecycleHandler.CompleteShift)
	mux.HandleFunc("/api/v1/shifts/archive", lifecycleHandler.ArchiveShift)

	// 人员可用性 API
	mux.HandleFunc("/api/v1/availability/checkin", lifecycleHandler.CheckIn)
	mux.HandleFunc("/api/v1/availability/checkout", lifecycleHandler.CheckOut)
	mux.HandleFunc("/api/v1/availability/break/begin", lifecycleHandler.BeginBreak)
	mux.HandleFunc("/api/v1/availability/break/end", lifecycleHandler.EndBreak)
	mux.HandleFunc("/api/v1/availability/hold", lifecycleHandler.Hold)
	mux.HandleFunc("/api/v1/availability/hold/clear", lifecycleHandler.ClearHold)
	mux.HandleFunc("/api/v1/availability/events", lifecycleHandler.AvailabilityEvents)

	// ========================================
	// 统计分析 API
	// ========================================

	mux.HandleFunc("/api/v1/stats/workload", statsHandler.Workload)
	mux.HandleFunc("/api/v1/stats/coverage", statsHandler.Coverage)
	mux.HandleFunc("/api/v1/shifts/requirements", statsHandler.Requirements)
	mux.HandleFunc("/api/v1/shifts/plan", statsHandler.PlanShifts)
	mux.HandleFunc("/api/v1/swap/recommend", statsHandler.SwapRecommend)
	mux.HandleFunc("/api/v1/swap/evaluate", statsHandler.SwapEvaluate)
	mux.HandleFunc("/api/v1/policy/certification", statsHandler.CertificationPolicy)

	// ========================================
	// 监控端点
	// ========================================

	// Prometheus 指标端点
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// ========================================
	// 中间件
	// ========================================

	// 中间件执行顺序：requestID -> rateLimit -> cors -> logging -> handler
	globalRateLimiter = NewRateLimiter(float64(cfg.API.RateLimit))
	root := requestIDMiddleware(rateLimitMiddleware(corsMiddleware(loggingMiddleware(mux))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Str("api_docs", fmt.Sprintf("http://localhost:%d/api/v1/", cfg.App.Port)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		os.Exit(1)
	}

	logger.Info().Msg("服务器已关闭")
}

// requestIDMiddleware 请求ID追踪中间件
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 尝试从请求头获取 Request ID，没有则生成新的
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// 设置响应头
		w.Header().Set("X-Request-ID", requestID)

		// 将 Request ID 存储到 context 中
		ctx := context.WithValue(r.Context(), "request_id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware 日志中间件
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 获取 Request ID
		requestID, _ := r.Context().Value("request_id").(string)

		// 包装ResponseWriter以捕获状态码
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", duration).
			Msg("请求处理")

		// 记录Prometheus指标
		metrics.RecordRequestMetrics(r.Method, r.URL.Path, rw.statusCode, duration)
	})
}

// responseWriter 包装ResponseWriter以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RateLimiter 简单的令牌桶限流器
type RateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // 每秒添加的令牌数
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter 创建限流器
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	return &RateLimiter{
		tokens:     requestsPerSecond,
		maxTokens:  requestsPerSecond * 2, // 允许突发流量
		refillRate: requestsPerSecond,
		lastRefill: time.Now(),
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

var globalRateLimiter = NewRateLimiter(100) // 默认 100 QPS

// rateLimitMiddleware 限流中间件
func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !globalRateLimiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   true,
				"code":    "RATE_LIMITED",
				"message": "请求过于频繁，请稍后重试",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware CORS中间件
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
