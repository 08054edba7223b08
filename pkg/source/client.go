package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SignalRadar/pkg/resilience"
)

// DataClient 行情网关客户端（tushare 风格的 POST/JSON 协议）
type DataClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// DataRequest 网关请求结构
type DataRequest struct {
	APIName string `json:"api_name"`
	Token   string `json:"token"`
	Params  any    `json:"params,omitempty"`
	Fields  string `json:"fields,omitempty"`
}

// DataResponse 网关响应结构：字段名列表加行数据
type DataResponse struct {
	RequestID string `json:"request_id"`
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Data      struct {
		Fields []string `json:"fields"`
		Items  [][]any  `json:"items"`
	} `json:"data"`
}

// FieldIndex 返回字段名到列下标的映射
func (r *DataResponse) FieldIndex() map[string]int {
	indices := make(map[string]int, len(r.Data.Fields))
	for i, field := range r.Data.Fields {
		indices[field] = i
	}
	return indices
}

// NewDataClient 创建网关客户端
func NewDataClient(apiKey, baseURL string, timeout time.Duration) *DataClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DataClient{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Execute 执行一次网关调用并解析响应。
// 429 或网关限流码转换为 RateLimitError，超时和5xx转换为 TransientError。
func (c *DataClient) Execute(ctx context.Context, apiName string, params any, fields string) (*DataResponse, error) {
	req := DataRequest{
		APIName: apiName,
		Token:   c.APIKey,
		Params:  params,
		Fields:  fields,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, &resilience.TransientError{Source: apiName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &resilience.RateLimitError{Source: apiName, Msg: "HTTP 429"}
	}
	if resp.StatusCode >= 500 {
		return nil, &resilience.TransientError{Source: apiName, Err: fmt.Errorf("网关返回状态码 %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("网关返回非200状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &resilience.TransientError{Source: apiName, Err: fmt.Errorf("读取响应体失败: %w", err)}
	}

	var dataResp DataResponse
	if err := json.Unmarshal(body, &dataResp); err != nil {
		return nil, &resilience.TransientError{Source: apiName, Err: fmt.Errorf("解析响应失败: %w", err)}
	}

	if dataResp.Code != 0 {
		if strings.Contains(dataResp.Msg, "每分钟") || strings.Contains(strings.ToLower(dataResp.Msg), "rate limit") {
			return nil, &resilience.RateLimitError{Source: apiName, Msg: dataResp.Msg}
		}
		return nil, fmt.Errorf("网关返回错误: %s", dataResp.Msg)
	}

	return &dataResp, nil
}
