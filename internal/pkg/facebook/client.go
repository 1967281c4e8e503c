// Package facebook 是 Graph API 的薄封装，负责请求签名、错误信封解析和分页。
package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://graph.facebook.com/v18.0"
	DefaultTimeout = 15 * time.Second

	// ListAll 默认最多拉取的条数
	DefaultListLimit = 500
	pageSize         = 100
)

// ErrTransport 网络或解码失败
var ErrTransport = errors.New("facebook: transport error")

// APIError Graph API 返回的错误信封
type APIError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
	FBTraceID    string `json:"fbtrace_id"`
	StatusCode   int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("facebook api error %d (%s): %s [trace %s]", e.Code, e.Type, e.Message, e.FBTraceID)
}

// IsTokenError 令牌失效或被撤销
func (e *APIError) IsTokenError() bool {
	return e.Code == 190 || (e.Type == "OAuthException" && e.Code == 102)
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// Paging 列表分页信息
type Paging struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
}

// ListResponse {data:[], paging:{}} 结构
type ListResponse[T any] struct {
	Data   []T    `json:"data"`
	Paging Paging `json:"paging"`
}

// Client Graph API 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient baseURL 需包含版本号，如 https://graph.facebook.com/v18.0
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL 返回带版本号的根地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get GET {base}/{path}
func (c *Client) Get(ctx context.Context, path, token string, params url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, c.endpoint(path), token, params, out)
}

// Post 以表单提交参数
func (c *Client) Post(ctx context.Context, path, token string, params url.Values, out interface{}) error {
	return c.do(ctx, http.MethodPost, c.endpoint(path), token, params, out)
}

func (c *Client) Delete(ctx context.Context, path, token string, params url.Values, out interface{}) error {
	return c.do(ctx, http.MethodDelete, c.endpoint(path), token, params, out)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, params url.Values, out interface{}) error {
	values := url.Values{}
	for k, v := range params {
		values[k] = v
	}
	if token != "" {
		values.Set("access_token", token)
	}

	var body io.Reader
	target := endpoint
	if method == http.MethodPost {
		body = strings.NewReader(values.Encode())
	} else if len(values) > 0 {
		target = endpoint + "?" + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	return c.send(req, out)
}

// getURL 直接请求 paging.next 给出的完整地址
func (c *Client) getURL(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	// Graph API 出错时返回 {"error":{...}}，状态码不一定是 4xx
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error != nil {
		env.Error.StatusCode = resp.StatusCode
		return env.Error
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{
			Message:    strings.TrimSpace(string(data)),
			Type:       "HTTPError",
			Code:       resp.StatusCode,
			StatusCode: resp.StatusCode,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	return nil
}

// ListAll 跟随 paging.next 拉取全部数据，最多 limit 条（<=0 时取 DefaultListLimit）
func ListAll[T any](ctx context.Context, c *Client, path, token string, params url.Values, limit int) ([]T, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	values := url.Values{}
	for k, v := range params {
		values[k] = v
	}
	if values.Get("limit") == "" {
		values.Set("limit", fmt.Sprint(min(limit, pageSize)))
	}

	var page ListResponse[T]
	if err := c.Get(ctx, path, token, values, &page); err != nil {
		return nil, err
	}

	items := make([]T, 0, len(page.Data))
	for {
		for _, item := range page.Data {
			if len(items) >= limit {
				return items, nil
			}
			items = append(items, item)
		}
		if page.Paging.Next == "" || len(items) >= limit || len(page.Data) == 0 {
			return items, nil
		}

		next := page.Paging.Next
		page = ListResponse[T]{}
		if err := c.getURL(ctx, next, &page); err != nil {
			return nil, err
		}
	}
}
