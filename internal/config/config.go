package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		LogLevel    int    `env:"LOG_LEVEL,default=4"`
		DotPath     string `env:"DOT_PATH,default=~/.loraguard"`
		DBPath      string `env:"DB_PATH,default=guard.db"`
		ListenAddr  string `env:"LISTEN_ADDR,default=:8080"`
		MetricsAddr string `env:"METRICS_ADDR,default=:2112"`

		API        API
		Breaker    Breaker
		Cache      Cache
		Filters    Filters
		Escalation Escalation
		Appeals    Appeals
		Reports    Reports
		Decay      Decay
		Slowmode   Slowmode
	}

	API struct {
		Key       string        `env:"API_KEY,required"`
		BaseURL   string        `env:"API_URL,default=https://api.loratech.dev/v1"`
		Model     string        `env:"API_MODEL,default=lora-moderation-latest"`
		Threshold float64       `env:"API_THRESHOLD,default=0.7"`
		Timeout   time.Duration `env:"API_TIMEOUT,default=2s"`
	}

	Breaker struct {
		Enabled          bool          `env:"BREAKER_ENABLED,default=true"`
		FailureThreshold int           `env:"BREAKER_FAILURES,default=5"`
		ResetWindow      time.Duration `env:"BREAKER_RESET,default=60s"`
	}

	Cache struct {
		Enabled bool          `env:"CACHE_ENABLED,default=true"`
		TTL     time.Duration `env:"CACHE_TTL,default=30m"`
		MaxSize int           `env:"CACHE_MAX_SIZE,default=1000"`
	}

	Filters struct {
		SpamEnabled   bool          `env:"FILTER_SPAM_ENABLED,default=true"`
		SpamMax       int           `env:"FILTER_SPAM_MAX,default=3"`
		SpamWindow    time.Duration `env:"FILTER_SPAM_WINDOW,default=10s"`
		FloodEnabled  bool          `env:"FILTER_FLOOD_ENABLED,default=true"`
		FloodMax      int           `env:"FILTER_FLOOD_MAX,default=5"`
		FloodWindow   time.Duration `env:"FILTER_FLOOD_WINDOW,default=5s"`
		LinkEnabled   bool          `env:"FILTER_LINK_ENABLED,default=true"`
		LinkAction    string        `env:"FILTER_LINK_ACTION,default=block"`
		LinkWhitelist []string      `env:"FILTER_LINK_WHITELIST,default=loratech.dev"`
		IPEnabled     bool          `env:"FILTER_IP_ENABLED,default=true"`
		IPWhitelist   []string      `env:"FILTER_IP_WHITELIST"`
		CapsEnabled   bool          `env:"FILTER_CAPS_ENABLED,default=true"`
		CapsMinLength int           `env:"FILTER_CAPS_MIN_LENGTH,default=10"`
		CapsMaxRatio  int           `env:"FILTER_CAPS_MAX_PERCENT,default=70"`
		CapsAction    string        `env:"FILTER_CAPS_ACTION,default=lowercase"`
	}

	Escalation struct {
		// Rules map a point threshold to a punishment spec, e.g.
		// "1:WARN,5:MUTE:10m,10:BAN:1440m".
		Rules              []string           `env:"ESCALATION_RULES,default=1:WARN,5:MUTE:10m,10:BAN:1440m"`
		CategoryWeights    map[string]int     `env:"CATEGORY_WEIGHTS,default=harassment:2,hate:3"`
		CategoryThresholds map[string]float64 `env:"CATEGORY_THRESHOLDS"`
		EnabledCategories  []string           `env:"ENABLED_CATEGORIES,default=spam,harassment,hate,sexual,violence"`
		CategoryPolicy     string             `env:"CATEGORY_POLICY,default=flagged-set"`
		Blacklist          []string           `env:"BLACKLIST_WORDS"`
	}

	Appeals struct {
		Enabled  bool          `env:"APPEALS_ENABLED,default=true"`
		Cooldown time.Duration `env:"APPEALS_COOLDOWN,default=1h"`
	}

	Reports struct {
		Cooldown time.Duration `env:"REPORTS_COOLDOWN,default=5m"`
	}

	Decay struct {
		Enabled       bool          `env:"DECAY_ENABLED,default=true"`
		IdleThreshold time.Duration `env:"DECAY_IDLE,default=24h"`
		Amount        int           `env:"DECAY_AMOUNT,default=1"`
		CheckInterval time.Duration `env:"DECAY_INTERVAL,default=30m"`
	}

	Slowmode struct {
		Enabled bool          `env:"SLOWMODE_ENABLED,default=false"`
		Delay   time.Duration `env:"SLOWMODE_DELAY,default=3s"`
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
			Lookuper: envconfig.PrefixLookuper("LG_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
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

// EnabledCategorySet folds the enabled category list into a lookup set.
func (e Escalation) EnabledCategorySet() map[string]struct{} {
	set := make(map[string]struct{}, len(e.EnabledCategories))
	for _, category := range e.EnabledCategories {
		category = strings.ToLower(strings.TrimSpace(category))
		if category == "" {
			continue
		}
		set[category] = struct{}{}
	}
	return set
}
