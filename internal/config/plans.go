package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanLimitsConfig is the deployment-supplied shape of one plan tier.
// A limit of -1 means unlimited.
type PlanLimitsConfig struct {
	Websites int64    `mapstructure:"websites"`
	Analyses int64    `mapstructure:"analyses"`
	Features []string `mapstructure:"features"`
}

// PlansConfig carries the limit numbers for every plan tier. The values
// are deployment configuration, never hard-coded in evaluator logic.
type PlansConfig struct {
	Basic      PlanLimitsConfig `mapstructure:"basic"`
	Pro        PlanLimitsConfig `mapstructure:"pro"`
	Enterprise PlanLimitsConfig `mapstructure:"enterprise"`
}

func DefaultPlansConfig() PlansConfig {
	return PlansConfig{
		Basic: PlanLimitsConfig{
			Websites: 3,
			Analyses: 10,
		},
		Pro: PlanLimitsConfig{
			Websites: 25,
			Analyses: 50,
			Features: []string{"analytics_dashboard"},
		},
		Enterprise: PlanLimitsConfig{
			Websites: -1,
			Analyses: -1,
			Features: []string{"analytics_dashboard", "team_collaboration", "priority_support"},
		},
	}
}

// PlansConfigHolder exposes the current plan table and swaps it atomically
// when the config file changes on disk.
type PlansConfigHolder struct {
	current atomic.Value // holds PlansConfig
}

func NewPlansConfigHolder() (*PlansConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/entitled/config") // Volume-mounted config
	v.AddConfigPath("/etc/entitled")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("ENTITLED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPlansConfig()
		v.SetDefault("plans.basic", defaults.Basic)
		v.SetDefault("plans.pro", defaults.Pro)
		v.SetDefault("plans.enterprise", defaults.Enterprise)
	}

	var cfg PlansConfig
	if err := v.UnmarshalKey("plans", &cfg); err != nil {
		return nil, err
	}
	if err := validatePlansConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PlansConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlansConfig
		if err := v.UnmarshalKey("plans", &updated); err != nil {
			log.Printf("[plans-config] reload failed: %v", err)
			return
		}
		if err := validatePlansConfig(updated); err != nil {
			log.Printf("[plans-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plans-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPlansConfigHolder wraps a fixed config, for tests.
func NewStaticPlansConfigHolder(cfg PlansConfig) *PlansConfigHolder {
	holder := &PlansConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PlansConfigHolder) Get() PlansConfig {
	return h.current.Load().(PlansConfig)
}

func validatePlansConfig(cfg PlansConfig) error {
	for _, limits := range []PlanLimitsConfig{cfg.Basic, cfg.Pro, cfg.Enterprise} {
		if limits.Websites < -1 || limits.Analyses < -1 {
			return errors.New("plan limits must be -1 (unlimited) or non-negative")
		}
	}
	return nil
}
