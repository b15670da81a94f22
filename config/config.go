// Package config assembles the process configuration from layered YAML
// files and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"mailintel/internal/genai"
	"mailintel/internal/gmail"
	"mailintel/internal/inflight"
	"mailintel/internal/noise"
	"mailintel/internal/service/analysis"
	pkgconfig "mailintel/pkg/config"
)

type Config struct {
	Server   pkgconfig.ServerConfig `yaml:"server"`
	Gmail    gmail.Config           `yaml:"gmail"`
	Genai    genai.Config           `yaml:"genai"`
	Analysis analysis.Config        `yaml:"analysis"`
	Noise    noise.Config           `yaml:"noise"`
	Inflight inflight.Config        `yaml:"inflight"`
	Redis    pkgconfig.RedisConfig  `yaml:"redis"`
	MQ       pkgconfig.MQConfig     `yaml:"mq"`
	JWT      pkgconfig.JWTConfig    `yaml:"jwt"`
	Otel     pkgconfig.OtelConfig   `yaml:"otel"`
}

// Load 读取 CONFIG_DIR（默认 config）下的 base.yaml 与 <CONFIG_ENV>.yaml，
// 目录中没有 base.yaml 时只使用默认值和环境变量
func Load() (*Config, error) {
	return LoadFrom(pkgconfig.GetEnv("CONFIG_DIR", "config"), pkgconfig.GetConfigEnv())
}

func LoadFrom(dir, env string) (*Config, error) {
	var cfg Config

	_, err := os.Stat(filepath.Join(dir, "base.yaml"))
	switch {
	case err == nil:
		m, err := pkgconfig.LoadConfig(env, dir)
		if err != nil {
			return nil, err
		}
		if err := pkgconfig.Decode(m, &cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
		// 没有配置文件，继续
	default:
		return nil, fmt.Errorf("stat config dir: %w", err)
	}

	// 环境变量覆盖（生产环境使用）
	overrideFromEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func overrideFromEnv(cfg *Config) {
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideOtelFromEnv(&cfg.Otel)

	// 生成式 API
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Genai.APIKey = key
	} else if key := os.Getenv("GENERATIVE_API_KEY"); key != "" {
		cfg.Genai.APIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.Genai.Model = model
	}
	if base := os.Getenv("GEMINI_BASE_URL"); base != "" {
		cfg.Genai.BaseURL = base
	}

	// Gmail
	if endpoint := os.Getenv("GMAIL_ENDPOINT"); endpoint != "" {
		cfg.Gmail.Endpoint = endpoint
	}
	if limit := os.Getenv("GMAIL_THREAD_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			cfg.Gmail.ThreadLimit = n
		}
	}

	if lang := os.Getenv("TASK_LANGUAGE"); lang != "" {
		cfg.Analysis.TaskLanguage = lang
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Otel.ServiceName == "" {
		cfg.Otel.ServiceName = "mailintel"
	}
	if cfg.Gmail.ThreadLimit <= 0 {
		cfg.Gmail.ThreadLimit = 20
	}
}
