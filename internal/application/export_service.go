package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"evocoder/internal/domain/models"
	"evocoder/pkg/logger"

	"go.uber.org/zap"
)

// ErrUnknownTarget 没有注册该导出目标
var ErrUnknownTarget = errors.New("未知的导出目标")

// Exporter 将项目导出到某个位置并返回该位置
type Exporter interface {
	Export(ctx context.Context, project *models.Project) (string, error)
}

// ExportService 导出应用服务，按目标名称选择导出器
type ExportService struct {
	mu        sync.RWMutex
	exporters map[string]Exporter
}

// NewExportService 创建导出应用服务实例
func NewExportService() *ExportService {
	return &ExportService{exporters: make(map[string]Exporter)}
}

// Register 注册导出目标，同名目标会被覆盖
func (s *ExportService) Register(target string, exporter Exporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exporters[target] = exporter
}

// Targets 返回已注册的目标（已排序）
func (s *ExportService) Targets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	targets := make([]string, 0, len(s.exporters))
	for t := range s.exporters {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Export 导出项目
func (s *ExportService) Export(ctx context.Context, target string, project *models.Project) (string, error) {
	s.mu.RLock()
	exporter, ok := s.exporters[target]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}

	location, err := exporter.Export(ctx, project)
	if err != nil {
		logger.Error("导出项目失败",
			zap.String("target", target),
			zap.String("project_id", project.ID),
			zap.Error(err))
		return "", err
	}
	return location, nil
}
