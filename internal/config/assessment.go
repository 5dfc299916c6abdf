package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AssessmentConfig carries the tunables that may change while the service runs.
type AssessmentConfig struct {
	Invites   InviteSettings    `mapstructure:"invites"`
	Analytics AnalyticsSettings `mapstructure:"analytics"`
}

type InviteSettings struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type AnalyticsSettings struct {
	TopProjects        int `mapstructure:"topProjects"`
	TrendMonths        int `mapstructure:"trendMonths"`
	ProjectConcurrency int `mapstructure:"projectConcurrency"`
}

func DefaultAssessmentConfig() AssessmentConfig {
	return AssessmentConfig{
		Invites: InviteSettings{
			TTL: 7 * 24 * time.Hour,
		},
		Analytics: AnalyticsSettings{
			TopProjects:        5,
			TrendMonths:        12,
			ProjectConcurrency: 4,
		},
	}
}

type AssessmentConfigHolder struct {
	current atomic.Value // holds AssessmentConfig
}

// NewStaticAssessmentConfig returns a holder that never reloads.
func NewStaticAssessmentConfig(cfg AssessmentConfig) *AssessmentConfigHolder {
	holder := &AssessmentConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewAssessmentConfigHolder(log *zap.Logger) (*AssessmentConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("assessment.config")

	v := viper.New()

	v.SetConfigName("assessment")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/assessly/config")
	v.AddConfigPath("/etc/assessly")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ASSESSLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAssessmentConfig()
	v.SetDefault("assessment.invites.ttl", defaults.Invites.TTL)
	v.SetDefault("assessment.analytics.topProjects", defaults.Analytics.TopProjects)
	v.SetDefault("assessment.analytics.trendMonths", defaults.Analytics.TrendMonths)
	v.SetDefault("assessment.analytics.projectConcurrency", defaults.Analytics.ProjectConcurrency)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg AssessmentConfig
	if err := v.UnmarshalKey("assessment", &cfg); err != nil {
		return nil, err
	}
	if err := validateAssessmentConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticAssessmentConfig(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AssessmentConfig
		if err := v.UnmarshalKey("assessment", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateAssessmentConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *AssessmentConfigHolder) Get() AssessmentConfig {
	if h == nil {
		return DefaultAssessmentConfig()
	}
	cfg, ok := h.current.Load().(AssessmentConfig)
	if !ok {
		return DefaultAssessmentConfig()
	}
	return cfg
}

func validateAssessmentConfig(cfg AssessmentConfig) error {
	if cfg.Invites.TTL <= 0 {
		return errors.New("assessment.invites.ttl must be positive")
	}
	if cfg.Analytics.TopProjects <= 0 {
		return errors.New("assessment.analytics.topProjects must be positive")
	}
	if cfg.Analytics.TrendMonths <= 0 || cfg.Analytics.TrendMonths > 60 {
		return errors.New("assessment.analytics.trendMonths must be between 1 and 60")
	}
	if cfg.Analytics.ProjectConcurrency <= 0 {
		return errors.New("assessment.analytics.projectConcurrency must be positive")
	}
	return nil
}
