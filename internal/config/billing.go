package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// BillingConfig carries the billing policy: seat pricing, grace window and
// the feature catalog. It is hot-reloadable so pricing changes do not need a
// restart.
type BillingConfig struct {
	PerSeatRateCents int64           `mapstructure:"perSeatRateCents"`
	GracePeriodDays  int             `mapstructure:"gracePeriodDays"`
	Features         []FeatureConfig `mapstructure:"features"`
}

type FeatureConfig struct {
	Key                  string `mapstructure:"key"`
	Category             string `mapstructure:"category"` // "base" or "premium"
	RequiresSubscription bool   `mapstructure:"requiresSubscription"`
	Disabled             bool   `mapstructure:"disabled"`
}

const (
	FeatureCategoryBase    = "base"
	FeatureCategoryPremium = "premium"
)

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		PerSeatRateCents: 1000,
		GracePeriodDays:  30,
		Features: []FeatureConfig{
			{Key: "equipment_management", Category: FeatureCategoryBase, RequiresSubscription: false},
			{Key: "work_orders", Category: FeatureCategoryBase, RequiresSubscription: false},
			{Key: "advanced_reporting", Category: FeatureCategoryBase, RequiresSubscription: true},
			{Key: "fleet_map", Category: FeatureCategoryPremium, RequiresSubscription: true},
		},
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/equipqr/config") // Volume-mounted config
	v.AddConfigPath("/etc/equipqr")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("EQUIPQR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &BillingConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultBillingConfig())
		return holder, nil
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	applyBillingDefaults(&cfg)
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		applyBillingDefaults(&updated)
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

// NewStaticBillingConfigHolder returns a holder pinned to cfg. Test helper.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func applyBillingDefaults(cfg *BillingConfig) {
	defaults := DefaultBillingConfig()
	if cfg.PerSeatRateCents == 0 {
		cfg.PerSeatRateCents = defaults.PerSeatRateCents
	}
	if cfg.GracePeriodDays == 0 {
		cfg.GracePeriodDays = defaults.GracePeriodDays
	}
	if len(cfg.Features) == 0 {
		cfg.Features = defaults.Features
	}
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.PerSeatRateCents < 0 {
		return errors.New("billing.perSeatRateCents cannot be negative")
	}
	if cfg.GracePeriodDays < 0 {
		return errors.New("billing.gracePeriodDays cannot be negative")
	}
	for _, feature := range cfg.Features {
		if strings.TrimSpace(feature.Key) == "" {
			return errors.New("billing.features entries require a key")
		}
		switch feature.Category {
		case FeatureCategoryBase, FeatureCategoryPremium:
		default:
			return errors.New("billing.features category must be base or premium")
		}
	}
	return nil
}

var BillingModule = fx.Module("config.billing", fx.Provide(NewBillingConfigHolder))
