package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "TEAMS_ENROLL"

	DefaultDeviceName    = "teams-enroll-device"
	DefaultInterfaceName = "warp0"
	DefaultMTU           = 1280
	DefaultTimeout       = 10 * time.Second

	maxDeviceName = 128
	maxIfaceName  = 15
	minMTU        = 576
	maxMTU        = 65535
)

// Flag names shared by the cli flag set and the viper keys.
const (
	KeyPrompt     = "prompt"
	KeyDeviceName = "device-name"
	KeyTeam       = "team"
	KeyOutput     = "output"
	KeyInterface  = "iface"
	KeyDNS        = "dns"
	KeyMTU        = "mtu"
	KeyEndpoint   = "endpoint"
	KeyTimeout    = "timeout"
	KeyDebug      = "debug"
)

type Config struct {
	Prompt     bool
	DeviceName string
	Team       string
	Output     string
	Interface  string
	DNS        []string
	MTU        int
	Endpoint   string
	Timeout    time.Duration
	Debug      bool
}

// Bind returns a viper instance where flags win when set, then
// TEAMS_ENROLL_* environment variables, then flag defaults.
func Bind(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	return v, nil
}

func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Prompt:     v.GetBool(KeyPrompt),
		DeviceName: strings.TrimSpace(v.GetString(KeyDeviceName)),
		Team:       strings.TrimSpace(v.GetString(KeyTeam)),
		Output:     strings.TrimSpace(v.GetString(KeyOutput)),
		Interface:  strings.TrimSpace(v.GetString(KeyInterface)),
		DNS:        splitList(v.GetStringSlice(KeyDNS)),
		MTU:        v.GetInt(KeyMTU),
		Endpoint:   strings.TrimSpace(v.GetString(KeyEndpoint)),
		Timeout:    v.GetDuration(KeyTimeout),
		Debug:      v.GetBool(KeyDebug),
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = DefaultDeviceName
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []string

	if len(c.DeviceName) > maxDeviceName {
		errs = append(errs, fmt.Sprintf("device-name must be at most %d characters", maxDeviceName))
	}
	if c.Team != "" && strings.ContainsAny(c.Team, "/:. ") {
		errs = append(errs, "team must be the organization name only, e.g. acme")
	}
	if len(c.Interface) > maxIfaceName {
		errs = append(errs, fmt.Sprintf("iface must be at most %d characters", maxIfaceName))
	}
	for i, s := range c.DNS {
		if net.ParseIP(s) == nil {
			errs = append(errs, fmt.Sprintf("dns[%d] must be an IP address", i))
		}
	}
	if c.MTU != 0 && (c.MTU < minMTU || c.MTU > maxMTU) {
		errs = append(errs, fmt.Sprintf("mtu must be 0 or %d-%d", minMTU, maxMTU))
	}
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errs = append(errs, "endpoint must be an http(s) URL")
		}
	}
	if c.Timeout < 0 {
		errs = append(errs, "timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// splitList accepts both repeated flags and comma or space separated
// environment values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		out = append(out, strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })...)
	}
	return out
}
