package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 表示应用程序的配置
type Config struct {
	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`

	Gemini GeminiConfig `yaml:"gemini"`

	Github struct {
		Endpoint string        `yaml:"endpoint"`
		Token    string        `yaml:"token"`
		TopN     int           `yaml:"top_n"`
		Timeout  time.Duration `yaml:"timeout"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"github"`

	Research struct {
		// Strategy 可选 github 或 model
		Strategy string `yaml:"strategy"`
	} `yaml:"research"`

	Storage struct {
		// Backend 可选 file、sqlite、postgres、memory
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
		DSN     string `yaml:"dsn"`
	} `yaml:"storage"`

	Export struct {
		Dir string   `yaml:"dir"`
		S3  S3Config `yaml:"s3"`
	} `yaml:"export"`

	Workflow struct {
		SelfImprove bool `yaml:"self_improve"`
		Research    bool `yaml:"research"`
	} `yaml:"workflow"`

	Logging struct {
		Level      string `yaml:"level"`       // 日志级别: debug, info, warn, error
		OutputPath string `yaml:"output_path"` // 日志输出路径，为空时只输出到控制台
	} `yaml:"logging"`
}

// GeminiConfig 模型网关配置
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// Budgets 每个操作的思考预算，键为操作名
	Budgets map[string]int `yaml:"budgets"`
}

// S3Config 对象存储导出配置
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// DefaultBudgets 默认思考预算
var DefaultBudgets = map[string]int{
	"knowledge":    32000,
	"structure":    15000,
	"file":         20000,
	"improve":      8000,
	"autocomplete": 2000,
	"tests":        8000,
	"audit":        8000,
	"component":    8000,
	"evolve":       8000,
}

// Default 返回填充了默认值的配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load 加载配置文件；path 为空或文件不存在时使用默认值，随后应用环境变量覆盖
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// 使用默认配置
		default:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnvOverrides 从环境变量读取密钥和部署相关设置
func (c *Config) applyEnvOverrides() {
	if v := firstEnv("GEMINI_API_KEY", "API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := firstEnv("GEMINI_MODEL"); v != "" {
		c.Gemini.Model = v
	}
	if v := firstEnv("GITHUB_TOKEN", "GITHUB_API_KEY"); v != "" {
		c.Github.Token = v
	}
	if v := firstEnv("EVOCODER_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := firstEnv("EVOCODER_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := firstEnv("EVOCODER_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := firstEnv("EVOCODER_STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := firstEnv("EVOCODER_RESEARCH_STRATEGY"); v != "" {
		c.Research.Strategy = v
	}
	if v := firstEnv("EVOCODER_SELF_IMPROVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Workflow.SelfImprove = b
		}
	}
	if v := firstEnv("EVOCODER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := firstEnv("ARTIFACT_S3_ENDPOINT"); v != "" {
		c.Export.S3.Endpoint = v
	}
	if v := firstEnv("ARTIFACT_S3_ACCESS_KEY", "MINIO_ROOT_USER"); v != "" {
		c.Export.S3.AccessKey = v
	}
	if v := firstEnv("ARTIFACT_S3_SECRET_KEY", "MINIO_ROOT_PASSWORD"); v != "" {
		c.Export.S3.SecretKey = v
	}
	if v := firstEnv("ARTIFACT_S3_BUCKET"); v != "" {
		c.Export.S3.Bucket = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-3-pro-preview"
	}
	if c.Gemini.Budgets == nil {
		c.Gemini.Budgets = make(map[string]int, len(DefaultBudgets))
	}
	for op, budget := range DefaultBudgets {
		if _, ok := c.Gemini.Budgets[op]; !ok {
			c.Gemini.Budgets[op] = budget
		}
	}
	if c.Github.Endpoint == "" {
		c.Github.Endpoint = "https://api.github.com"
	}
	if c.Github.TopN <= 0 {
		c.Github.TopN = 5
	}
	if c.Github.Timeout <= 0 {
		c.Github.Timeout = 20 * time.Second
	}
	if c.Github.CacheTTL <= 0 {
		c.Github.CacheTTL = 5 * time.Minute
	}
	if c.Research.Strategy == "" {
		c.Research.Strategy = "github"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Path == "" {
		switch c.Storage.Backend {
		case "sqlite":
			c.Storage.Path = "./data/vault.db"
		default:
			c.Storage.Path = "./data"
		}
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "./exports"
	}
	if c.Export.S3.Region == "" {
		c.Export.S3.Region = "us-east-1"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Budget 返回指定操作的思考预算
func (c *Config) Budget(op string) int {
	if b, ok := c.Gemini.Budgets[op]; ok {
		return b
	}
	return DefaultBudgets[op]
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
