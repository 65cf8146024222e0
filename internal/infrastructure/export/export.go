package export

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"evocoder/internal/domain/models"
	"evocoder/pkg/logger"

	"go.uber.org/zap"
)

// ErrEmptyProject 没有可导出的文件
var ErrEmptyProject = errors.New("export: 项目没有文件")

// cleanPath 规范化虚拟路径，去掉 .. 和开头的 /，防止越出项目目录
func cleanPath(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}

// ZipRoot 返回 zip 内的顶层目录名。项目名来自模型输出，只保留最后一段
func ZipRoot(project *models.Project) string {
	root := path.Base(cleanPath(project.Name))
	if root == "" || root == "." || root == "/" {
		root = path.Base(cleanPath(project.ID))
	}
	if root == "" || root == "." || root == "/" {
		root = "project"
	}
	return root
}

// WriteZip 将项目文件写入 zip 流
func WriteZip(w io.Writer, project *models.Project) error {
	if project == nil || len(project.Files) == 0 {
		return ErrEmptyProject
	}

	zw := zip.NewWriter(w)
	root := ZipRoot(project)
	for _, f := range project.Files {
		name := cleanPath(f.Path)
		if name == "" {
			continue
		}
		entry, err := zw.Create(path.Join(root, name))
		if err != nil {
			return fmt.Errorf("创建 zip 条目 %s 失败: %w", name, err)
		}
		if _, err := io.WriteString(entry, f.Content); err != nil {
			return fmt.Errorf("写入 zip 条目 %s 失败: %w", name, err)
		}
	}
	return zw.Close()
}

// ZipExporter 导出到本地目录下的 zip 文件
type ZipExporter struct {
	Dir string
}

// Export 写出 <dir>/<project-id>.zip 并返回文件路径
func (z *ZipExporter) Export(_ context.Context, project *models.Project) (string, error) {
	if project == nil || len(project.Files) == 0 {
		return "", ErrEmptyProject
	}
	if err := os.MkdirAll(z.Dir, 0755); err != nil {
		return "", fmt.Errorf("创建导出目录失败: %w", err)
	}

	target := filepath.Join(z.Dir, project.ID+".zip")
	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("创建导出文件失败: %w", err)
	}
	if err := WriteZip(f, project); err != nil {
		f.Close()
		os.Remove(target)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	logger.Info("项目已导出为 zip",
		zap.String("project_id", project.ID),
		zap.String("path", target),
		zap.Int("files", len(project.Files)))
	return target, nil
}
