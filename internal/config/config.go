package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string `env:"TOKEN,required"`
		DefaultLanguage  string `env:"LANG,default=en"`
		LogLevel         int    `env:"LOG_LEVEL,default=2"`
		DotPath          string `env:"DOT_PATH,default=~/.guardbot"`
		MetricsAddr      string `env:"METRICS_ADDR,default=:2112"`
		Classifier       Classifier
		Moderation       Moderation
		Reports          Reports
	}

	Classifier struct {
		Provider   string        `env:"CLASSIFIER_PROVIDER,default=openai"`
		APIKey     string        `env:"CLASSIFIER_API_KEY"`
		Model      string        `env:"CLASSIFIER_MODEL,default=gpt-4o-mini"`
		BaseURL    string        `env:"CLASSIFIER_API_URL,default=https://api.openai.com/v1"`
		Timeout    time.Duration `env:"CLASSIFIER_TIMEOUT,default=10s"`
		MaxRetries int           `env:"CLASSIFIER_MAX_RETRIES,default=2"`
		ModelsDir  string        `env:"CLASSIFIER_MODELS_DIR,default=models"`
	}

	Moderation struct {
		OwnerID                int64 `env:"OWNER_ID"`
		EnforceAdmins          bool  `env:"ENFORCE_ADMINS,default=false"`
		MinClassifiableTextLen int   `env:"MIN_CLASSIFIABLE_TEXT_LEN,default=18"`
		MaxVideoFrames         int   `env:"MAX_VIDEO_FRAMES,default=5"`
		HighSeverity           int   `env:"HIGH_SEVERITY,default=3"`
		GracePoints            int   `env:"GRACE_POINTS,default=3"`
	}

	Reports struct {
		SummaryInterval time.Duration `env:"REPORTS_SUMMARY_INTERVAL,default=24h"`
		SummaryWindow   time.Duration `env:"REPORTS_SUMMARY_WINDOW,default=24h"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("GB_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			globalErr = fmt.Errorf("get user home directory: %w", err)
			return
		}
		cfg.DotPath = strings.Replace(cfg.DotPath, "~", home, 1)
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
