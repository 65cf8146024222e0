package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"evocoder/internal/domain/models"
	"evocoder/internal/infrastructure/github"
	"evocoder/internal/infrastructure/storage"
	"evocoder/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// VaultKey 研究库在存储中的固定键名
const VaultKey = "GITHUB_VAULT_DATA"

// 研究策略
const (
	StrategyGithub = "github"
	StrategyModel  = "model"
)

// ErrNoResults 搜索没有匹配的仓库
var ErrNoResults = errors.New("没有找到匹配的仓库")

// Researcher 执行一次研究，不负责持久化
type Researcher interface {
	Research(ctx context.Context, topic string) (*models.ScrapedData, error)
}

// RepoSearcher 仓库搜索，github.Client 实现了该接口
type RepoSearcher interface {
	SearchRepositories(ctx context.Context, query string) (*github.SearchResult, error)
}

// GithubResearcher 汇总按 star 排序的前 N 个仓库
type GithubResearcher struct {
	client RepoSearcher
	topN   int
}

// NewGithubResearcher 创建基于仓库搜索的研究策略
func NewGithubResearcher(client RepoSearcher, topN int) *GithubResearcher {
	if topN <= 0 {
		topN = 5
	}
	return &GithubResearcher{client: client, topN: topN}
}

// Research 搜索仓库并生成摘要
func (r *GithubResearcher) Research(ctx context.Context, topic string) (*models.ScrapedData, error) {
	result, err := r.client.SearchRepositories(ctx, topic)
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, ErrNoResults
	}

	top := result.Items
	if len(top) > r.topN {
		top = top[:r.topN]
	}
	best := top[0]

	description := best.Description
	if description == "" {
		description = "No description provided."
	}
	data := &models.ScrapedData{
		Topic:   strings.ToUpper(topic),
		Summary: fmt.Sprintf("%s is the best match for %q. %s", best.FullName, topic, description),
	}
	for _, repo := range top {
		stars := repo.Stars
		language := repo.Language
		if language == "" {
			language = "an unknown language"
		}
		data.TechnicalDetails = append(data.TechnicalDetails,
			fmt.Sprintf("%s: %d stars, written in %s", repo.Name, repo.Stars, language))
		data.Sources = append(data.Sources, models.ResearchSource{Title: repo.FullName, URI: repo.HTMLURL, Stars: &stars})
	}

	stats := &models.RepoStats{Language: best.Language, Forks: best.Forks, License: best.LicenseName()}
	if stats.Language == "" {
		stats.Language = "N/A"
	}
	if stats.License == "" {
		stats.License = "Unspecified"
	}
	data.RepoStats = stats
	return data, nil
}

// ModelResearcher 通过一次联网模型调用完成研究
type ModelResearcher struct {
	gateway ModelGateway
}

// NewModelResearcher 创建基于模型的研究策略
func NewModelResearcher(gateway ModelGateway) *ModelResearcher {
	return &ModelResearcher{gateway: gateway}
}

// Research 将知识收集结果映射为研究记录
func (r *ModelResearcher) Research(ctx context.Context, topic string) (*models.ScrapedData, error) {
	res := r.gateway.CollectKnowledge(ctx, topic)
	if res.Failed() {
		return nil, res.Err
	}

	k := res.Data
	data := &models.ScrapedData{Topic: strings.ToUpper(topic), Summary: k.Summary}
	for _, lib := range k.Libraries {
		data.TechnicalDetails = append(data.TechnicalDetails, fmt.Sprintf("%s %s: %s", lib.Name, lib.Version, lib.Reason))
	}
	data.TechnicalDetails = append(data.TechnicalDetails, k.KeyFacts...)
	for _, s := range res.Sources {
		data.Sources = append(data.Sources, models.ResearchSource{Title: s.Title, URI: s.URI})
	}
	return data, nil
}

// ResearchService 研究库：记录整体读写，最新的在前
type ResearchService struct {
	kv         storage.KV
	researcher Researcher

	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewResearchService 创建研究库服务
func NewResearchService(kv storage.KV, researcher Researcher) *ResearchService {
	return &ResearchService{
		kv:         kv,
		researcher: researcher,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Record 执行一次研究并把结果插到列表最前面；研究失败时不写入任何内容
func (s *ResearchService) Record(ctx context.Context, topic string) (*models.ScrapedData, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("研究主题不能为空")
	}

	start := time.Now()
	data, err := s.researcher.Research(ctx, topic)
	if err != nil {
		logger.Error("研究失败", zap.String("topic", topic), zap.Error(err))
		return nil, fmt.Errorf("研究 %q 失败: %w", topic, err)
	}
	data.ID = s.newID()
	data.Timestamp = s.now().Format(time.RFC3339)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	records = append([]models.ScrapedData{*data}, records...)
	if err := s.save(ctx, records); err != nil {
		return nil, err
	}

	logger.Info("研究记录已保存",
		zap.String("id", data.ID),
		zap.String("topic", data.Topic),
		zap.Int("total", len(records)),
		zap.Duration("elapsed", logger.Since(start)))
	return data, nil
}

// List 返回所有记录，最新的在前
func (s *ResearchService) List(ctx context.Context) ([]models.ScrapedData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Clear 清空研究库
func (s *ResearchService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, VaultKey); err != nil {
		return fmt.Errorf("清空研究库失败: %w", err)
	}
	logger.Info("研究库已清空")
	return nil
}

func (s *ResearchService) load(ctx context.Context) ([]models.ScrapedData, error) {
	raw, err := s.kv.Get(ctx, VaultKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []models.ScrapedData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取研究库失败: %w", err)
	}

	var records []models.ScrapedData
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("解析研究库失败: %w", err)
	}
	if records == nil {
		records = []models.ScrapedData{}
	}
	return records, nil
}

func (s *ResearchService) save(ctx context.Context, records []models.ScrapedData) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("序列化研究库失败: %w", err)
	}
	if err := s.kv.Put(ctx, VaultKey, raw); err != nil {
		return fmt.Errorf("写入研究库失败: %w", err)
	}
	return nil
}
