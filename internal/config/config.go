package config

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"emailwriter/pkg/config"
)

// ReplyConfig 回复生成相关配置
type ReplyConfig struct {
	// 生成失败时返回的 HTTP 状态码，默认 200
	FailureStatus int `yaml:"failure_status"`
}

type Config struct {
	Server config.ServerConfig `yaml:"server"`
	Gemini config.GeminiConfig `yaml:"gemini"`
	Reply  ReplyConfig         `yaml:"reply"`
	Otel   config.OtelConfig   `yaml:"otel"`
}

// Load 加载配置，失败直接退出
func Load() *Config {
	cfg, err := LoadFrom(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadFrom 从指定目录和环境加载配置
func LoadFrom(env, configDir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := config.Decode(cfgMap, cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideGeminiFromEnv(&cfg.Gemini)
	config.OverrideOtelFromEnv(&cfg.Otel)

	if cfg.Reply.FailureStatus == 0 {
		cfg.Reply.FailureStatus = http.StatusOK
	}
	if cfg.Reply.FailureStatus < 100 || cfg.Reply.FailureStatus > 599 {
		return nil, fmt.Errorf("reply.failure_status %d is not a valid HTTP status", cfg.Reply.FailureStatus)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: config.ServerConfig{Port: ":8080"},
		Gemini: config.GeminiConfig{
			Timeout: 30 * time.Second,
			CircuitBreaker: config.CircuitBreakerConfig{
				FailureThreshold:    5,
				SuccessThreshold:    2,
				OpenTimeout:         30 * time.Second,
				HalfOpenMaxRequests: 3,
			},
		},
	}
}
