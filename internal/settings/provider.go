package settings

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Provider resolves settings from the writable store, falling back to
// environment defaults (OFFLOADER_<NAME>) for anything never stored.
type Provider struct {
	store    Store
	defaults *viper.Viper

	mu        sync.Mutex
	listeners []func()
}

// NewProvider creates a Provider. A nil defaults source means built-in
// defaults only.
func NewProvider(store Store, defaults *viper.Viper) *Provider {
	if defaults == nil {
		defaults = viper.New()
		applyBuiltinDefaults(defaults)
	}
	return &Provider{store: store, defaults: defaults}
}

// EnvDefaults returns a viper instance reading OFFLOADER_* environment
// variables on top of the built-in defaults.
func EnvDefaults() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("OFFLOADER")
	applyBuiltinDefaults(v)
	v.AutomaticEnv()
	return v
}

func applyBuiltinDefaults(v *viper.Viper) {
	for _, name := range Names {
		v.SetDefault(name, "")
	}
	v.SetDefault(Region, DefaultRegion)
	v.SetDefault(UsePathStyle, false)
	v.SetDefault(DeleteLocal, false)
	v.SetDefault(Driver, DriverS3)
}

// OnChange registers fn to be called after every successful Set.
func (p *Provider) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Get returns the effective value of a setting. Empty stored values read as
// unset and fall through to the defaults.
func (p *Provider) Get(ctx context.Context, name string) (string, error) {
	if !isKnown(name) {
		return "", fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}
	v, ok, err := p.store.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if ok && strings.TrimSpace(v) != "" {
		return v, nil
	}
	return cast.ToString(p.defaults.Get(name)), nil
}

// Set normalizes and stores a setting.
func (p *Provider) Set(ctx context.Context, name string, value any) error {
	return p.SetMany(ctx, map[string]any{name: value})
}

// SetMany normalizes every value first and writes only when all of them are
// valid, so a rejected request stores nothing. Listeners run once after the
// writes.
func (p *Provider) SetMany(ctx context.Context, values map[string]any) error {
	stored := make(map[string]string, len(values))
	for name, value := range values {
		v, err := Normalize(name, value)
		if err != nil {
			return err
		}
		stored[name] = v
	}
	if len(stored) == 0 {
		return nil
	}

	for _, name := range Names {
		v, ok := stored[name]
		if !ok {
			continue
		}
		if err := p.store.Set(ctx, name, v); err != nil {
			return err
		}
	}

	p.mu.Lock()
	listeners := append([]func(){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
	return nil
}

// Normalize returns the stored form of a setting value. Booleans become
// "true"/"false", the key prefix loses empty segments and the driver must
// be one of the supported ones.
func Normalize(name string, value any) (string, error) {
	if !isKnown(name) {
		return "", fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}
	switch {
	case isBool(name):
		return FormatBool(ParseBool(value)), nil
	case name == BasePrefix:
		return NormalizePrefix(cast.ToString(value)), nil
	case name == Driver:
		d := strings.ToLower(strings.TrimSpace(cast.ToString(value)))
		if d != "" && d != DriverS3 && d != DriverMinio {
			return "", fmt.Errorf("%w: driver %q", ErrInvalidValue, d)
		}
		return d, nil
	default:
		return strings.TrimSpace(cast.ToString(value)), nil
	}
}

// Snapshot assembles a StorageConfig from the current settings.
func (p *Provider) Snapshot(ctx context.Context) (StorageConfig, error) {
	stored, err := p.store.All(ctx)
	if err != nil {
		return StorageConfig{}, fmt.Errorf("load settings: %w", err)
	}

	get := func(name string) string {
		if v, ok := stored[name]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(cast.ToString(p.defaults.Get(name)))
	}

	cfg := StorageConfig{
		AccessKey:    get(AccessKey),
		SecretKey:    get(SecretKey),
		Bucket:       get(Bucket),
		Region:       get(Region),
		Endpoint:     get(Endpoint),
		UsePathStyle: ParseBool(get(UsePathStyle)),
		KeyPrefix:    NormalizePrefix(get(BasePrefix)),
		DeleteLocal:  ParseBool(get(DeleteLocal)),
		Driver:       strings.ToLower(get(Driver)),
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverS3
	}
	if cfg.Driver != DriverS3 && cfg.Driver != DriverMinio {
		return cfg, fmt.Errorf("%w: driver %q", ErrInvalidValue, cfg.Driver)
	}
	return cfg, nil
}
