package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 事件追踪服务配置
type Config struct {
	HTTP struct {
		Addr string
	}

	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Database string
		SSLMode  string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// Sigma Cloud 事件追踪配置
	Sigma struct {
		BaseURL     string
		BearerToken string

		// 聚合窗口时长
		WindowPeriod time.Duration
		// 触发阈值（同一窗口内同键事件数）
		CountThreshold int
		// 批量抓取上限（2 的幂次翻倍，超过即判定为致命错误）
		MaxBatches int
		// 监控的客户唯一码白名单
		IncludedCucs []string
		// 参与计数的事件码白名单
		IncludedCodes []string
		// 轮询间隔
		PollInterval time.Duration

		// 触发过期判定字段：updated_at 或 created_at
		StalenessField string
		// 是否排除人工关闭工单关联的事件
		OccurrenceFilter bool
		// 工单关闭人过滤参数（OccurrenceFilter 开启时使用）
		OccurrenceClosingUserID int
	}

	// ChatPro 聊天通知配置
	ChatPro struct {
		BaseURL     string
		InstanceID  string
		BearerToken string
		GroupJID    string
	}

	Evaluation struct {
		// 每周期并发评估的键数量上限
		Concurrency int
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "sigma_tracker")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Sigma.BaseURL = getEnv("SIGMA_BASE_URL", "https://api.segware.com.br")
	cfg.Sigma.BearerToken = os.Getenv("SIGMA_BEARER_TOKEN")
	cfg.Sigma.WindowPeriod = time.Duration(parseInt(getEnv("SIGMA_WINDOW_HOURS", "2"), 2)) * time.Hour
	cfg.Sigma.CountThreshold = parseInt(getEnv("SIGMA_COUNT_THRESHOLD", "20"), 20)
	cfg.Sigma.MaxBatches = parseInt(getEnv("SIGMA_MAX_BATCHES", "64"), 64)
	cfg.Sigma.IncludedCucs = parseList(getEnv("SIGMA_INCLUDED_CUCS", "ALI,ALR,BEM,CER,IVA,PAB,PIN"))
	cfg.Sigma.IncludedCodes = parseList(getEnv("SIGMA_INCLUDED_CODES", "E130,E131,E132,E133,1130,1131,1132,1133"))
	cfg.Sigma.PollInterval = time.Duration(parseInt(getEnv("SIGMA_POLL_INTERVAL", "60"), 60)) * time.Second
	cfg.Sigma.StalenessField = getEnv("SIGMA_STALENESS_FIELD", "updated_at")
	cfg.Sigma.OccurrenceFilter = getEnv("SIGMA_OCCURRENCE_FILTER", "false") == "true"
	cfg.Sigma.OccurrenceClosingUserID = parseInt(getEnv("SIGMA_OCCURRENCE_CLOSING_USER_ID", "0"), 0)

	cfg.ChatPro.BaseURL = getEnv("CHATPRO_BASE_URL", "https://v5.chatpro.com.br")
	cfg.ChatPro.InstanceID = os.Getenv("CHATPRO_INSTANCE_ID")
	cfg.ChatPro.BearerToken = os.Getenv("CHATPRO_BEARER_TOKEN")
	cfg.ChatPro.GroupJID = os.Getenv("CHATPRO_GROUP_JID")

	cfg.Evaluation.Concurrency = parseInt(getEnv("EVALUATION_CONCURRENCY", "8"), 8)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if c.Sigma.WindowPeriod <= 0 {
		return fmt.Errorf("sigma window period must be positive")
	}
	if c.Sigma.CountThreshold <= 0 {
		return fmt.Errorf("sigma count threshold must be positive")
	}
	if c.Sigma.MaxBatches < 1 {
		return fmt.Errorf("sigma max batches must be at least 1")
	}
	if c.Sigma.StalenessField != "updated_at" && c.Sigma.StalenessField != "created_at" {
		return fmt.Errorf("invalid staleness field: %s, valid values: updated_at, created_at", c.Sigma.StalenessField)
	}
	if c.Evaluation.Concurrency < 1 {
		return fmt.Errorf("evaluation concurrency must be at least 1")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
