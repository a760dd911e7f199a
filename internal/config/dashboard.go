package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DashboardConfig carries the runtime-tunable dashboard settings.
type DashboardConfig struct {
	Invoices InvoicesConfig `mapstructure:"invoices"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Login    LoginConfig    `mapstructure:"login"`
}

type InvoicesConfig struct {
	ListPath    string `mapstructure:"listPath"`
	PageSize    int    `mapstructure:"pageSize"`
	FailDeletes bool   `mapstructure:"failDeletes"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LoginConfig struct {
	RedirectPath string  `mapstructure:"redirectPath"`
	Rate         float64 `mapstructure:"rate"`
	Burst        int     `mapstructure:"burst"`
}

func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		Invoices: InvoicesConfig{
			ListPath: "/dashboard/invoices",
			PageSize: 6,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Login: LoginConfig{
			RedirectPath: "/dashboard",
			Rate:         0.2,
			Burst:        5,
		},
	}
}

type DashboardHolder struct {
	current atomic.Value // holds DashboardConfig
}

// NewStaticDashboardHolder returns a holder that never reloads.
func NewStaticDashboardHolder(cfg DashboardConfig) *DashboardHolder {
	holder := &DashboardHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewDashboardHolder(cfg Config) (*DashboardHolder, error) {
	v := viper.New()

	if cfg.DashboardConfigPath != "" {
		if _, err := os.Stat(cfg.DashboardConfigPath); err != nil {
			return nil, fmt.Errorf("dashboard config: %w", err)
		}
		v.SetConfigFile(cfg.DashboardConfigPath)
	} else {
		v.SetConfigName("dashboard")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/invoicedesk")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("INVOICEDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDashboardDefaults(v, DefaultDashboardConfig())

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
	}

	current, err := decodeDashboard(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticDashboardHolder(current)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeDashboard(v)
		if err != nil {
			log.Printf("[dashboard-config] invalid config ignored: %v", err)
			return
		}
		holder.reload(updated)
		log.Printf("[dashboard-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// reload swaps in updated but keeps the listing path: routes are registered
// from it once at startup, so a new value only applies after a restart.
func (h *DashboardHolder) reload(updated DashboardConfig) {
	current := h.Get()
	if updated.Invoices.ListPath != current.Invoices.ListPath {
		log.Printf("[dashboard-config] invoices.listPath change to %q ignored until restart", updated.Invoices.ListPath)
		updated.Invoices.ListPath = current.Invoices.ListPath
	}
	h.current.Store(updated)
}

func (h *DashboardHolder) Get() DashboardConfig {
	return h.current.Load().(DashboardConfig)
}

func setDashboardDefaults(v *viper.Viper, defaults DashboardConfig) {
	v.SetDefault("invoices.listPath", defaults.Invoices.ListPath)
	v.SetDefault("invoices.pageSize", defaults.Invoices.PageSize)
	v.SetDefault("invoices.failDeletes", defaults.Invoices.FailDeletes)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)
	v.SetDefault("login.redirectPath", defaults.Login.RedirectPath)
	v.SetDefault("login.rate", defaults.Login.Rate)
	v.SetDefault("login.burst", defaults.Login.Burst)
}

func decodeDashboard(v *viper.Viper) (DashboardConfig, error) {
	var cfg DashboardConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return DashboardConfig{}, err
	}
	if err := validateDashboardConfig(cfg); err != nil {
		return DashboardConfig{}, err
	}
	return cfg, nil
}

func validateDashboardConfig(cfg DashboardConfig) error {
	if !strings.HasPrefix(cfg.Invoices.ListPath, "/") {
		return errors.New("invoices.listPath must be an absolute route path")
	}
	if cfg.Invoices.PageSize <= 0 {
		return errors.New("invoices.pageSize must be positive")
	}
	if !strings.HasPrefix(cfg.Login.RedirectPath, "/") {
		return errors.New("login.redirectPath must be an absolute route path")
	}
	if cfg.Login.Rate <= 0 || cfg.Login.Burst <= 0 {
		return errors.New("login.rate and login.burst must be positive")
	}
	return nil
}
