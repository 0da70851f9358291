// Package config resolves runtime settings from defaults, an optional YAML
// file and the environment, in that order. Command line flags are applied on
// top by the caller.
package config

import (
	"math"
	"os"
	"time"

	"emperror.dev/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/kube-openapi/pkg/validation/strfmt"

	"github.com/rusenback/dockerstats/internal/environ"
)

var ErrInvalidConfig = errors.NewPlain("invalid configuration")

type Config struct {
	DockerHost string
	TLSVerify  bool
	CertPath   string

	SampleInterval time.Duration
	Retention      time.Duration
	CallTimeout    time.Duration
	Workers        int

	UpdateCheckInterval time.Duration
	UpdateCheckTick     time.Duration
	RegistryRate        float64
	RegistryBurst       int

	DetailCacheTTL time.Duration

	Host         string
	Port         int
	AuthUser     string
	AuthPassword string

	LogLevel  string
	LogFormat string
}

func Default() *Config {
	return &Config{
		DockerHost:          "unix:///var/run/docker.sock",
		SampleInterval:      5 * time.Second,
		Retention:           24 * time.Hour,
		CallTimeout:         10 * time.Second,
		Workers:             4,
		UpdateCheckInterval: 60 * time.Second,
		UpdateCheckTick:     15 * time.Second,
		RegistryRate:        1,
		RegistryBurst:       3,
		DetailCacheTTL:      5 * time.Second,
		Host:                "0.0.0.0",
		Port:                5000,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load returns defaults overlaid with the file at path, when path is not
// empty, and then with the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// Duration is a YAML duration that also accepts day and week units.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := strfmt.ParseDuration(value.Value)
	if err != nil {
		return errors.WrapIfWithDetails(err, "invalid duration", "line", value.Line)
	}
	*d = Duration(parsed)
	return nil
}

// file mirrors Config. Only keys present in the file are applied.
type file struct {
	DockerHost          *string   `yaml:"docker_host"`
	TLSVerify           *bool     `yaml:"tls_verify"`
	CertPath            *string   `yaml:"cert_path"`
	SampleInterval      *Duration `yaml:"sample_interval"`
	Retention           *Duration `yaml:"retention"`
	CallTimeout         *Duration `yaml:"call_timeout"`
	Workers             *int      `yaml:"workers"`
	UpdateCheckInterval *Duration `yaml:"update_check_interval"`
	UpdateCheckTick     *Duration `yaml:"update_check_tick"`
	RegistryRate        *float64  `yaml:"registry_rate"`
	RegistryBurst       *int      `yaml:"registry_burst"`
	DetailCacheTTL      *Duration `yaml:"detail_cache_ttl"`
	Host                *string   `yaml:"host"`
	Port                *int      `yaml:"port"`
	AuthUser            *string   `yaml:"auth_user"`
	AuthPassword        *string   `yaml:"auth_password"`
	LogLevel            *string   `yaml:"log_level"`
	LogFormat           *string   `yaml:"log_format"`
}

// LoadFile overlays the YAML file at path. Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.WrapIfWithDetails(err, "failed to open config file", "path", path)
	}
	defer f.Close()

	var raw file
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return errors.WrapIfWithDetails(err, "failed to parse config file", "path", path)
	}

	setString(&c.DockerHost, raw.DockerHost)
	setBool(&c.TLSVerify, raw.TLSVerify)
	setString(&c.CertPath, raw.CertPath)
	setDuration(&c.SampleInterval, raw.SampleInterval)
	setDuration(&c.Retention, raw.Retention)
	setDuration(&c.CallTimeout, raw.CallTimeout)
	setInt(&c.Workers, raw.Workers)
	setDuration(&c.UpdateCheckInterval, raw.UpdateCheckInterval)
	setDuration(&c.UpdateCheckTick, raw.UpdateCheckTick)
	if raw.RegistryRate != nil {
		c.RegistryRate = *raw.RegistryRate
	}
	setInt(&c.RegistryBurst, raw.RegistryBurst)
	setDuration(&c.DetailCacheTTL, raw.DetailCacheTTL)
	setString(&c.Host, raw.Host)
	setInt(&c.Port, raw.Port)
	setString(&c.AuthUser, raw.AuthUser)
	setString(&c.AuthPassword, raw.AuthPassword)
	setString(&c.LogLevel, raw.LogLevel)
	setString(&c.LogFormat, raw.LogFormat)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}

// ApplyEnv overlays environment variables.
func (c *Config) ApplyEnv() {
	c.DockerHost = environ.GetString("DOCKER_HOST", c.DockerHost)
	c.TLSVerify = environ.GetBool("DOCKER_TLS_VERIFY", c.TLSVerify)
	c.CertPath = environ.GetString("DOCKER_CERT_PATH", c.CertPath)
	c.SampleInterval = environ.GetDuration("SAMPLE_INTERVAL", c.SampleInterval)
	c.Retention = environ.GetDuration("RETENTION", c.Retention)
	c.CallTimeout = environ.GetDuration("CALL_TIMEOUT", c.CallTimeout)
	c.Workers = environ.GetInt("SAMPLER_WORKERS", c.Workers)
	c.UpdateCheckInterval = environ.GetDuration("UPDATE_CHECK_INTERVAL", c.UpdateCheckInterval)
	c.UpdateCheckTick = environ.GetDuration("UPDATE_CHECK_TICK", c.UpdateCheckTick)
	c.RegistryRate = environ.GetFloat("REGISTRY_RATE", c.RegistryRate)
	c.RegistryBurst = environ.GetInt("REGISTRY_BURST", c.RegistryBurst)
	c.DetailCacheTTL = environ.GetDuration("DETAIL_CACHE_TTL", c.DetailCacheTTL)
	c.Host = environ.GetString("APP_HOST", c.Host)
	c.Port = environ.GetInt("APP_PORT", c.Port)
	c.AuthUser = environ.GetString("AUTH_USER", c.AuthUser)
	c.AuthPassword = environ.GetString("AUTH_PASSWORD", c.AuthPassword)
	c.LogLevel = environ.GetString("LOG_LEVEL", c.LogLevel)
	c.LogFormat = environ.GetString("LOG_FORMAT", c.LogFormat)
}

func (c *Config) Validate() error {
	invalid := func(msg string, details ...interface{}) error {
		return errors.WithDetails(errors.WrapIf(ErrInvalidConfig, msg), details...)
	}

	switch {
	case c.SampleInterval <= 0:
		return invalid("sample interval must be positive", "sample_interval", c.SampleInterval)
	case c.Retention < c.SampleInterval:
		return invalid("retention must be at least one sample interval", "retention", c.Retention)
	case c.Workers < 1:
		return invalid("workers must be at least 1", "workers", c.Workers)
	case c.CallTimeout <= 0:
		return invalid("call timeout must be positive", "call_timeout", c.CallTimeout)
	case c.UpdateCheckInterval <= 0 || c.UpdateCheckTick <= 0:
		return invalid("update check interval and tick must be positive")
	case c.RegistryRate < 0 || c.RegistryBurst < 0:
		return invalid("registry rate and burst must not be negative")
	case c.DetailCacheTTL < 0:
		return invalid("detail cache ttl must not be negative", "detail_cache_ttl", c.DetailCacheTTL)
	case c.Port < 1 || c.Port > 65535:
		return invalid("port out of range", "port", c.Port)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log format must be text or json", "log_format", c.LogFormat)
	}
	return nil
}

// Capacity is the number of records kept per container.
func (c *Config) Capacity() int {
	if c.SampleInterval <= 0 {
		return 1
	}
	n := int(math.Ceil(float64(c.Retention) / float64(c.SampleInterval)))
	if n < 1 {
		return 1
	}
	return n
}
