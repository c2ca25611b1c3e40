package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// GatewaySettings holds the tunable, hot-reloadable parts of the gateway
// layer: which networks accept new checkouts and how long outbound calls
// may take. Secrets stay in the environment; only operational knobs live
// here so they can be flipped without a restart.
type GatewaySettings struct {
	Enabled        []string      `mapstructure:"enabled"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
	PendingTTL     time.Duration `mapstructure:"pendingTTL"`
}

func DefaultGatewaySettings() GatewaySettings {
	return GatewaySettings{
		Enabled:        []string{"alfalah", "jazzcash", "kuickpay", "paypal", "stripe"},
		RequestTimeout: 15 * time.Second,
		PendingTTL:     time.Hour,
	}
}

func (s GatewaySettings) GatewayEnabled(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, enabled := range s.Enabled {
		if strings.ToLower(strings.TrimSpace(enabled)) == name {
			return true
		}
	}
	return false
}

type GatewaySettingsHolder struct {
	current atomic.Value // holds GatewaySettings
}

func NewGatewaySettingsHolder() (*GatewaySettingsHolder, error) {
	v := viper.New()

	v.SetConfigName("gateways")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/paycore/config")
	v.AddConfigPath("/etc/paycore")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAYCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultGatewaySettings()
		v.SetDefault("gateways.enabled", defaults.Enabled)
		v.SetDefault("gateways.requestTimeout", defaults.RequestTimeout)
		v.SetDefault("gateways.pendingTTL", defaults.PendingTTL)
	}

	var settings GatewaySettings
	if err := v.UnmarshalKey("gateways", &settings); err != nil {
		return nil, err
	}
	if err := validateGatewaySettings(settings); err != nil {
		return nil, err
	}

	holder := &GatewaySettingsHolder{}
	holder.current.Store(settings)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated GatewaySettings
		if err := v.UnmarshalKey("gateways", &updated); err != nil {
			log.Printf("[gateway-config] reload failed: %v", err)
			return
		}
		if err := validateGatewaySettings(updated); err != nil {
			log.Printf("[gateway-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[gateway-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticGatewaySettingsHolder wraps fixed settings with no file watch.
func NewStaticGatewaySettingsHolder(settings GatewaySettings) *GatewaySettingsHolder {
	holder := &GatewaySettingsHolder{}
	holder.current.Store(settings)
	return holder
}

func (h *GatewaySettingsHolder) Get() GatewaySettings {
	return h.current.Load().(GatewaySettings)
}

func validateGatewaySettings(s GatewaySettings) error {
	if len(s.Enabled) == 0 {
		return errors.New("gateways.enabled cannot be empty")
	}
	if s.RequestTimeout <= 0 {
		return errors.New("gateways.requestTimeout must be positive")
	}
	if s.PendingTTL <= 0 {
		return errors.New("gateways.pendingTTL must be positive")
	}
	return nil
}
