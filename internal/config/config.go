package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"qrscan-service/internal/camera"
)

type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Scanner ScannerConfig `mapstructure:"scanner"`
	Camera  CameraConfig  `mapstructure:"camera"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	// PublicOrigin overrides the page origin derived from requests, for
	// deployments behind a TLS-terminating proxy.
	PublicOrigin string   `mapstructure:"public_origin"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

type ScannerConfig struct {
	FPS           int    `mapstructure:"fps"`
	DefaultWidth  int    `mapstructure:"default_width"`
	DefaultHeight int    `mapstructure:"default_height"`
	MaxSessions   int    `mapstructure:"max_sessions"`
	DefaultFacing string `mapstructure:"default_facing"`
}

type CameraConfig struct {
	Type              string        `mapstructure:"type"`
	EnvironmentURL    string        `mapstructure:"environment_url"`
	UserURL           string        `mapstructure:"user_url"`
	EnvironmentImages []string      `mapstructure:"environment_images"`
	UserImages        []string      `mapstructure:"user_images"`
	Interval          time.Duration `mapstructure:"interval"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads config.yaml (or path), then QRSCAN_* environment variables.
// A .env file in the working directory is loaded into the environment
// first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("QRSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.public_origin", "")
	v.SetDefault("http.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("scanner.fps", 30)
	v.SetDefault("scanner.default_width", 640)
	v.SetDefault("scanner.default_height", 480)
	v.SetDefault("scanner.max_sessions", 16)
	v.SetDefault("scanner.default_facing", string(camera.FacingEnvironment))

	v.SetDefault("camera.type", camera.TypeSnapshot)
	v.SetDefault("camera.environment_url", "")
	v.SetDefault("camera.user_url", "")
	v.SetDefault("camera.environment_images", []string{})
	v.SetDefault("camera.user_images", []string{})
	v.SetDefault("camera.interval", 100*time.Millisecond)
	v.SetDefault("camera.timeout", 5*time.Second)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
}

// Validate clamps tunables into range and rejects settings the service
// cannot run with.
func (c *Config) Validate() error {
	if c.Scanner.FPS <= 0 {
		c.Scanner.FPS = 30
	}
	if c.Scanner.FPS > 60 {
		c.Scanner.FPS = 60
	}
	if c.Scanner.DefaultWidth <= 0 || c.Scanner.DefaultHeight <= 0 {
		c.Scanner.DefaultWidth, c.Scanner.DefaultHeight = 640, 480
	}
	if c.Scanner.MaxSessions <= 0 {
		c.Scanner.MaxSessions = 1
	}
	if _, err := camera.ParseFacingMode(c.Scanner.DefaultFacing); err != nil {
		return fmt.Errorf("scanner.default_facing: %w", err)
	}

	switch c.Camera.Type {
	case camera.TypeSnapshot, camera.TypeStill:
	default:
		return fmt.Errorf("camera.type: unknown camera type %q", c.Camera.Type)
	}

	if c.HTTP.PublicOrigin != "" {
		u, err := url.Parse(c.HTTP.PublicOrigin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("http.public_origin: %q is not an absolute origin", c.HTTP.PublicOrigin)
		}
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		c.Log.Format = "json"
	}
	return nil
}

// CameraDevices converts the camera section for camera.New.
func (c *Config) CameraDevices() camera.Config {
	return camera.Config{
		Type:              c.Camera.Type,
		EnvironmentURL:    c.Camera.EnvironmentURL,
		UserURL:           c.Camera.UserURL,
		EnvironmentImages: c.Camera.EnvironmentImages,
		UserImages:        c.Camera.UserImages,
		Interval:          c.Camera.Interval,
		Timeout:           c.Camera.Timeout,
	}
}
