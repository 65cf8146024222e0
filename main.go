package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"evocoder/internal/app/service"
	"evocoder/internal/application"
	"evocoder/internal/domain/models"
	"evocoder/internal/infrastructure/export"
	"evocoder/internal/infrastructure/github"
	"evocoder/internal/infrastructure/storage"
	"evocoder/internal/interfaces/http/handlers"
	"evocoder/pkg/config"
	"evocoder/pkg/logger"
	"evocoder/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "1.2"

var (
	configPath  string
	research    bool
	selfImprove bool
	exportTo    string
)

// app 所有命令共用的组件
type app struct {
	cfg          *config.Config
	kv           storage.KV
	gateway      *service.Gateway
	research     *service.ResearchService
	orchestrator *service.Orchestrator
	exports      *application.ExportService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.OutputPath); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	kv, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path, cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}

	gateway := service.NewGatewayFromConfig(ctx, cfg)

	var researcher service.Researcher
	switch cfg.Research.Strategy {
	case service.StrategyModel:
		researcher = service.NewModelResearcher(gateway)
	default:
		researcher = service.NewGithubResearcher(github.NewClient(github.Options{
			Endpoint: cfg.Github.Endpoint,
			Token:    cfg.Github.Token,
			Timeout:  cfg.Github.Timeout,
			CacheTTL: cfg.Github.CacheTTL,
		}), cfg.Github.TopN)
	}

	exports := application.NewExportService()
	exports.Register("zip", &export.ZipExporter{Dir: cfg.Export.Dir})
	if cfg.Export.S3.Endpoint != "" {
		s3, err := export.NewS3Exporter(cfg.Export.S3)
		if err != nil {
			logger.Warn("S3 导出不可用", zap.Error(err))
		} else {
			exports.Register("s3", s3)
		}
	}

	logger.Info("组件初始化完成",
		zap.String("mode", gateway.Mode().String()),
		zap.String("model", cfg.Gemini.Model),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("research", cfg.Research.Strategy),
		zap.Strings("export_targets", exports.Targets()))

	return &app{
		cfg:          cfg,
		kv:           kv,
		gateway:      gateway,
		research:     service.NewResearchService(kv, researcher),
		orchestrator: service.NewOrchestrator(gateway, nil, service.OrchestratorOptions{Version: version}),
		exports:      exports,
	}, nil
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		logger.Warn("关闭存储失败", zap.Error(err))
	}
	logger.Sync()
}

var rootCmd = &cobra.Command{
	Use:           "evocoder",
	Short:         "LLM-backed project generator",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and event stream",
	RunE:  runServe,
}

var buildCmd = &cobra.Command{
	Use:   "build <prompt>",
	Short: "Generate a project from a prompt and print its file tree",
	Long: `Runs structure planning and per-file generation in the foreground.

Examples:
  evocoder build "Create a todo app"
  evocoder build --research --self-improve --export zip "REST API for a bookstore"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

var researchCmd = &cobra.Command{
	Use:   "research <topic>",
	Short: "Run one research pass and store the result in the vault",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResearch,
}

var researchListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print stored research records, newest first",
	Args:  cobra.NoArgs,
	RunE:  runResearchList,
}

var researchClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored research record",
	Args:  cobra.NoArgs,
	RunE:  runResearchClear,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")

	buildCmd.Flags().BoolVar(&research, "research", false, "Collect technical knowledge before planning")
	buildCmd.Flags().BoolVar(&selfImprove, "self-improve", false, "Rewrite every file once after generation")
	buildCmd.Flags().StringVar(&exportTo, "export", "", "Export target after the build (zip or s3)")

	researchCmd.AddCommand(researchListCmd)
	researchCmd.AddCommand(researchClearCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(researchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(
		handlers.NewProjectHandler(a.orchestrator, a.exports, version, service.Request{
			Research:    a.cfg.Workflow.Research,
			SelfImprove: a.cfg.Workflow.SelfImprove,
		}),
		handlers.NewResearchHandler(a.research),
		handlers.NewEventsHandler(a.orchestrator),
	)
	srv := &http.Server{Addr: a.cfg.Server.Listen, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("启动服务", zap.String("listen", a.cfg.Server.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("启动 HTTP 服务失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("关闭 HTTP 服务超时", zap.Error(err))
	}
	a.orchestrator.Wait()
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	project, err := a.orchestrator.Start(ctx, service.Request{
		Prompt:      strings.Join(args, " "),
		Research:    research || a.cfg.Workflow.Research,
		SelfImprove: selfImprove || a.cfg.Workflow.SelfImprove,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s [%s, %s mode]\n", project.Name, project.Status, a.gateway.Mode())
	fmt.Fprint(out, types.BuildTree(project.Paths()).String())
	if project.Status == models.StatusError {
		return fmt.Errorf("构建失败，查看日志了解详情")
	}

	if exportTo != "" {
		location, err := a.exports.Export(ctx, exportTo, project)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "exported to %s\n", location)
	}
	return nil
}

func runResearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	record, err := a.research.Record(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	return printJSON(cmd, record)
}

func runResearchList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.research.List(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, records)
}

func runResearchClear(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.research.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "research vault cleared")
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
