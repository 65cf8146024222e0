package github

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

	"evocoder/pkg/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrRateLimited GitHub 未认证搜索被限流
var ErrRateLimited = errors.New("github: 请求被限流")

// Repository 搜索结果中的仓库
type Repository struct {
	Name        string   `json:"name"`
	FullName    string   `json:"full_name"`
	HTMLURL     string   `json:"html_url"`
	Description string   `json:"description"`
	Stars       int      `json:"stargazers_count"`
	Forks       int      `json:"forks_count"`
	Language    string   `json:"language"`
	License     *License `json:"license"`
}

// License 仓库许可证
type License struct {
	Name string `json:"name"`
}

// LicenseName 返回许可证名称，没有时返回空串
func (r Repository) LicenseName() string {
	if r.License == nil {
		return ""
	}
	return r.License.Name
}

// SearchResult 仓库搜索响应
type SearchResult struct {
	TotalCount int          `json:"total_count"`
	Items      []Repository `json:"items"`
}

// Options GitHub 客户端选项
type Options struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client GitHub 搜索客户端
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client

	cache *expirable.LRU[string, *SearchResult]
	group singleflight.Group
}

// NewClient 创建 GitHub 客户端实例
func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = "https://api.github.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	c := &Client{
		endpoint:   strings.TrimRight(opts.Endpoint, "/"),
		token:      opts.Token,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
	// 未认证搜索每分钟只有少量配额，同一主题短时间内复用结果
	if opts.CacheTTL > 0 {
		c.cache = expirable.NewLRU[string, *SearchResult](256, nil, opts.CacheTTL)
	}
	return c
}

// SearchRepositories 按 star 数降序搜索仓库
func (c *Client) SearchRepositories(ctx context.Context, query string) (*SearchResult, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if c.cache != nil {
		if res, ok := c.cache.Get(key); ok {
			logger.Debug("命中 GitHub 搜索缓存", zap.String("query", query))
			return res, nil
		}
	}

	// 并发的相同查询只发出一次请求
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.search(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*SearchResult)
	if c.cache != nil {
		c.cache.Add(key, res)
	}
	return res, nil
}

func (c *Client) search(ctx context.Context, query string) (*SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "stars")
	params.Set("order", "desc")
	apiURL := c.endpoint + "/search/repositories?" + params.Encode()

	logger.Info("搜索 GitHub 仓库", zap.String("query", query))

	resp, err := c.makeRequest(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("请求 GitHub 搜索失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Warn("GitHub API 返回错误",
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("GitHub API 请求失败: %s", resp.Status)
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("解析搜索响应失败: %w", err)
	}
	return &result, nil
}

// makeRequest 发送 HTTP 请求
func (c *Client) makeRequest(ctx context.Context, apiURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "EvoCoder/1.2")

	return c.httpClient.Do(req)
}
