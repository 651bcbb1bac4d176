// Package config loads service settings from configs/config.yml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"nightfall_dashboard/internal/logger"
)

// EnvPrefix prefixes environment overrides, e.g. NIGHTFALL_ROBOT_URL.
const EnvPrefix = "NIGHTFALL"

// Defaults.
const (
	DefaultPort                = "8080"
	DefaultDBPath              = "nightfall.db"
	DefaultRobotURL            = "ws://192.168.4.1:8888"
	DefaultProtocol            = "vector"
	DefaultCameraIP            = "192.168.4.3"
	DefaultCameraPath          = "/stream"
	DefaultCommandThrottle     = 50 * time.Millisecond
	DefaultMaxTelemetryHistory = 50
	DefaultHistorySample       = time.Second
	DefaultTokenTTL            = 12 * time.Hour
)

type Config struct {
	Port     string   `mapstructure:"port"`
	LogLevel string   `mapstructure:"log_level"`
	DB       DB       `mapstructure:"db"`
	Auth     Auth     `mapstructure:"auth"`
	Robot    Robot    `mapstructure:"robot"`
	Camera   Camera   `mapstructure:"camera"`
	Settings Settings `mapstructure:"settings"`
}

type DB struct {
	Path string `mapstructure:"path"`
}

type Auth struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type Robot struct {
	URL              string        `mapstructure:"url"`
	Protocol         string        `mapstructure:"protocol"` // vector | named
	AutoConnect      bool          `mapstructure:"auto_connect"`
	AutoReconnect    bool          `mapstructure:"auto_reconnect"`
	KeepAlive        time.Duration `mapstructure:"keepalive"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

type Camera struct {
	FallbackIP      string        `mapstructure:"fallback_ip"`
	Port            int           `mapstructure:"port"` // 0 = scheme default
	Path            string        `mapstructure:"path"`
	AutoStart       bool          `mapstructure:"auto_start"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// StreamURL builds the MJPEG endpoint for a camera host.
func (c Camera) StreamURL(ip string) string {
	host := ip
	if c.Port > 0 {
		host = net.JoinHostPort(ip, strconv.Itoa(c.Port))
	}
	path := c.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + host + path
}

// Settings are the operator preferences that can change at runtime.
type Settings struct {
	CommandThrottle     time.Duration `mapstructure:"command_throttle"`
	MaxTelemetryHistory int           `mapstructure:"max_telemetry_history"`
	EnableSounds        bool          `mapstructure:"enable_sounds"`
	HistorySample       time.Duration `mapstructure:"history_sample"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", DefaultPort)
	v.SetDefault("log_level", logger.InfoLevel)
	v.SetDefault("db.path", DefaultDBPath)
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", DefaultTokenTTL)
	v.SetDefault("robot.url", DefaultRobotURL)
	v.SetDefault("robot.protocol", DefaultProtocol)
	v.SetDefault("robot.auto_connect", true)
	v.SetDefault("robot.auto_reconnect", true)
	v.SetDefault("robot.keepalive", 5*time.Second)
	v.SetDefault("robot.read_timeout", 15*time.Second)
	v.SetDefault("robot.handshake_timeout", 5*time.Second)
	v.SetDefault("camera.fallback_ip", DefaultCameraIP)
	v.SetDefault("camera.port", 0)
	v.SetDefault("camera.path", DefaultCameraPath)
	v.SetDefault("camera.auto_start", true)
	v.SetDefault("camera.probe_timeout", 3*time.Second)
	v.SetDefault("camera.refresh_interval", 100*time.Millisecond)
	v.SetDefault("settings.command_throttle", DefaultCommandThrottle)
	v.SetDefault("settings.max_telemetry_history", DefaultMaxTelemetryHistory)
	v.SetDefault("settings.enable_sounds", false)
	v.SetDefault("settings.history_sample", DefaultHistorySample)
}

// Default returns the configuration used when nothing else is available.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Loader reads one configuration source and can watch it.
type Loader struct {
	v   *viper.Viper
	log *logger.Logger
}

// NewLoader reads path, or configs/config.yml when path is empty.
func NewLoader(path string, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	return &Loader{v: v, log: log}
}

// Load never fails hard: a missing file yields defaults silently and a
// broken one yields defaults plus the read error.
func (l *Loader) Load() (Config, error) {
	var readErr error
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			readErr = fmt.Errorf("read config: %w", err)
		}
	}
	cfg, err := l.decode()
	if err != nil {
		return Default(), errors.Join(readErr, err)
	}
	return cfg, readErr
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	sanitize(&cfg, l.log)
	return cfg, nil
}

// Watch calls onChange with the re-read configuration whenever the file changes.
func (l *Loader) Watch(onChange func(Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			l.log.Warnw("config_reload_failed", "file", e.Name, "err", err)
			return
		}
		l.log.Infow("config_reloaded", "file", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// sanitize replaces out-of-range values with defaults.
func sanitize(cfg *Config, log *logger.Logger) {
	d := Default()
	fix := func(key string, bad bool, apply func()) {
		if bad {
			log.Warnw("config_value_invalid", "key", key)
			apply()
		}
	}
	fix("port", strings.TrimSpace(cfg.Port) == "", func() { cfg.Port = d.Port })
	fix("db.path", strings.TrimSpace(cfg.DB.Path) == "", func() { cfg.DB.Path = d.DB.Path })
	fix("auth.token_ttl", cfg.Auth.TokenTTL <= 0, func() { cfg.Auth.TokenTTL = d.Auth.TokenTTL })
	fix("robot.url", strings.TrimSpace(cfg.Robot.URL) == "", func() { cfg.Robot.URL = d.Robot.URL })
	fix("robot.protocol", cfg.Robot.Protocol != "vector" && cfg.Robot.Protocol != "named",
		func() { cfg.Robot.Protocol = d.Robot.Protocol })
	fix("robot.keepalive", cfg.Robot.KeepAlive <= 0, func() { cfg.Robot.KeepAlive = d.Robot.KeepAlive })
	fix("robot.read_timeout", cfg.Robot.ReadTimeout < 0, func() { cfg.Robot.ReadTimeout = d.Robot.ReadTimeout })
	fix("robot.handshake_timeout", cfg.Robot.HandshakeTimeout <= 0, func() { cfg.Robot.HandshakeTimeout = d.Robot.HandshakeTimeout })
	fix("camera.fallback_ip", strings.TrimSpace(cfg.Camera.FallbackIP) == "", func() { cfg.Camera.FallbackIP = d.Camera.FallbackIP })
	fix("camera.port", cfg.Camera.Port < 0 || cfg.Camera.Port > 65535, func() { cfg.Camera.Port = d.Camera.Port })
	fix("camera.path", strings.TrimSpace(cfg.Camera.Path) == "", func() { cfg.Camera.Path = d.Camera.Path })
	fix("camera.probe_timeout", cfg.Camera.ProbeTimeout <= 0, func() { cfg.Camera.ProbeTimeout = d.Camera.ProbeTimeout })
	fix("camera.refresh_interval", cfg.Camera.RefreshInterval <= 0, func() { cfg.Camera.RefreshInterval = d.Camera.RefreshInterval })
	fix("settings.command_throttle", cfg.Settings.CommandThrottle <= 0, func() { cfg.Settings.CommandThrottle = d.Settings.CommandThrottle })
	fix("settings.max_telemetry_history", cfg.Settings.MaxTelemetryHistory <= 0,
		func() { cfg.Settings.MaxTelemetryHistory = d.Settings.MaxTelemetryHistory })
	fix("settings.history_sample", cfg.Settings.HistorySample <= 0, func() { cfg.Settings.HistorySample = d.Settings.HistorySample })
}
