package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// Client — Webhook 通知客户端
// 向团队 IM（飞书/钉钉/Slack 的自定义机器人）的 webhook 地址推送卡片消息，
// 投递是尽力而为的副作用，失败由调用方记日志，不影响业务状态
// =============================================================================

// Client 通知客户端
type Client struct {
	defaultWebhook string       // 团队级默认 webhook，用户没有个人 webhook 时使用
	httpClient     *http.Client // HTTP客户端
}

// NewClient 创建通知客户端
func NewClient(defaultWebhook string) *Client {
	return &Client{
		defaultWebhook: defaultWebhook,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled 是否配置了可用的默认 webhook
func (c *Client) Enabled() bool {
	return c != nil && c.defaultWebhook != ""
}

// Card 卡片消息
type Card struct {
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	Priority string  `json:"priority,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
}

// Field 卡片字段
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SendCard 向指定 webhook 推送卡片，webhookURL 为空时使用默认地址
func (c *Client) SendCard(ctx context.Context, webhookURL string, card Card) error {
	url := webhookURL
	if url == "" {
		url = c.defaultWebhook
	}
	if url == "" {
		return fmt.Errorf("未配置通知 webhook 地址")
	}

	payload := map[string]interface{}{
		"msg_type": "card",
		"card":     card,
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化通知消息失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("创建通知请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("推送通知失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("通知 webhook 返回异常状态: %d", resp.StatusCode)
	}

	// 兼容返回 {"code":N} 的机器人网关
	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Code != 0 {
		return fmt.Errorf("通知网关错误[%d]: %s", result.Code, result.Msg)
	}
	return nil
}
