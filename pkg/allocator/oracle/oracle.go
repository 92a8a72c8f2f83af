// Package oracle 提供可插拔的分配建议服务客户端
//
// 建议只作为有界的附加信号混入本地评分，服务不可用时
// 引擎降级为纯本地评分，批量分配不会因此失败。
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/model"
)

// Suggestion 对单个候选人员的建议权重
type Suggestion struct {
	StaffID uuid.UUID `json:"staff_id"`
	Weight  float64   `json:"weight"` // [0,1]
	Note    string    `json:"note,omitempty"`
}

// Ranker 建议服务接口
type Ranker interface {
	// ProposeRanking 对班次候选人给出建议权重，失败时返回错误，
	// 调用方负责降级
	ProposeRanking(ctx context.Context, shift *model.Shift, candidates []*model.StaffMember) ([]Suggestion, error)
}

// Nop 空实现，始终不给建议
type Nop struct{}

// ProposeRanking 返回空建议
func (Nop) ProposeRanking(ctx context.Context, shift *model.Shift, candidates []*model.StaffMember) ([]Suggestion, error) {
	return nil, nil
}

// HTTPRanker 通过 HTTP 调用外部建议服务
type HTTPRanker struct {
	url    string
	client *http.Client
}

// NewHTTPRanker 创建 HTTP 建议客户端，超时为硬上限
func NewHTTPRanker(url string, timeout time.Duration) *HTTPRanker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPRanker{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type rankRequest struct {
	Shift      *model.Shift         `json:"shift"`
	Candidates []*model.StaffMember `json:"candidates"`
}

type rankResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// ProposeRanking 请求外部服务的候选人排序建议
func (r *HTTPRanker) ProposeRanking(ctx context.Context, shift *model.Shift, candidates []*model.StaffMember) ([]Suggestion, error) {
	body, err := json.Marshal(rankRequest{Shift: shift, Candidates: candidates})
	if err != nil {
		return nil, fmt.Errorf("序列化建议请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("构造建议请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("建议服务请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("建议服务返回状态 %d", resp.StatusCode)
	}

	var out rankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("解析建议响应失败: %w", err)
	}
	return out.Suggestions, nil
}
