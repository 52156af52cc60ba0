// Package appconf loads and validates the display configuration.
package appconf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

// String returns the configuration spelling of the environment.
func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// EnvFlagToEnvironment maps the -env flag or the YAML env key to an Environment.
func EnvFlagToEnvironment(env string) Environment {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

func (e *Environment) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	*e = EnvFlagToEnvironment(s)
	return nil
}

// APIKeyEnv overrides bkk.api_key when set.
const APIKeyEnv = "BKK_API_KEY"

const DefaultBaseURL = "https://futar.bkk.hu/api/query/v1/ws/otp/api/where/"

type HTTPConfig struct {
	Port      int `yaml:"port" validate:"gte=0,lte=65535"`
	RateLimit int `yaml:"rate_limit" validate:"gte=0"`
	// APIKeys guards the status API. Empty leaves it open.
	APIKeys []string `yaml:"api_keys" validate:"dive,required"`
}

type LEDConfig struct {
	DimRatio      float64 `yaml:"dim_ratio" validate:"gte=0,lte=1"`
	FadeTime      float64 `yaml:"fade_time" validate:"gt=0"`
	JitterSeconds float64 `yaml:"jitter_seconds" validate:"gte=0"`
}

type SACNConfig struct {
	Multicast  bool   `yaml:"multicast"`
	UnicastIP  string `yaml:"unicast_ip" validate:"omitempty,ip"`
	Universe   int    `yaml:"universe" validate:"gte=1,lte=63999"`
	FPS        int    `yaml:"fps" validate:"gt=0"`
	SourceName string `yaml:"source_name" validate:"max=63"`
}

type BKKConfig struct {
	APIKey            string   `yaml:"api_key" validate:"required"`
	BaseURL           string   `yaml:"base_url" validate:"required,url"`
	AppVersion        string   `yaml:"app_version"`
	APIUpdateInterval float64  `yaml:"api_update_interval" validate:"gt=0"`
	APIUpdateRealtime float64  `yaml:"api_update_realtime" validate:"gt=0"`
	APIUpdateRegular  float64  `yaml:"api_update_regular" validate:"gt=0"`
	APIUpdateAlerts   float64  `yaml:"api_update_alerts" validate:"gt=0"`
	AlertRoutes       []string `yaml:"alert_routes"`
}

type BrightnessConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker" validate:"required_if=Enabled true"`
	Key      string `yaml:"key" validate:"required_if=Enabled true"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
}

type GTFSConfig struct {
	StaticPath string `yaml:"static_path"`
}

type StopConfig struct {
	Name     string   `yaml:"name" validate:"required"`
	LED      int      `yaml:"led" validate:"gte=0"`
	Terminus bool     `yaml:"terminus"`
	StopIDs  []string `yaml:"stop_ids" validate:"dive,required"`
}

type RouteConfig struct {
	RouteID  string       `yaml:"route_id" validate:"required"`
	Name     string       `yaml:"name"`
	Type     string       `yaml:"type" validate:"omitempty,oneof=subway railway other"`
	Color    string       `yaml:"color" validate:"omitempty,hexadecimal,len=6"`
	Realtime bool         `yaml:"realtime"`
	Stops    []StopConfig `yaml:"stops" validate:"dive"`
}

type LEDOverride struct {
	LED   int    `yaml:"led" validate:"gte=0"`
	Color string `yaml:"color" validate:"required,hexadecimal,len=6"`
}

type NetworkConfig struct {
	Routes       []RouteConfig `yaml:"routes" validate:"required,min=1,dive"`
	LEDOverrides []LEDOverride `yaml:"led_overrides" validate:"dive"`
}

// Config is the full configuration surface of the display.
type Config struct {
	Env        Environment      `yaml:"env"`
	Verbose    bool             `yaml:"verbose"`
	HTTP       HTTPConfig       `yaml:"http"`
	LED        LEDConfig        `yaml:"led"`
	SACN       SACNConfig       `yaml:"sacn"`
	BKK        BKKConfig        `yaml:"bkk"`
	Brightness BrightnessConfig `yaml:"brightness"`
	GTFS       GTFSConfig       `yaml:"gtfs"`
	Network    NetworkConfig    `yaml:"network"`
}

// Default returns a Config carrying every default value and an empty network.
func Default() Config {
	return Config{
		Env:  Development,
		HTTP: HTTPConfig{Port: 8080, RateLimit: 10},
		LED:  LEDConfig{DimRatio: 0.25, FadeTime: 1.0, JitterSeconds: 3},
		SACN: SACNConfig{
			Multicast:  true,
			UnicastIP:  "127.0.0.1",
			Universe:   1,
			FPS:        60,
			SourceName: "Budapest Metro Display",
		},
		BKK: BKKConfig{
			BaseURL:           DefaultBaseURL,
			AppVersion:        "1.1.abc",
			APIUpdateInterval: 2,
			APIUpdateRealtime: 60,
			APIUpdateRegular:  1800,
			APIUpdateAlerts:   600,
		},
	}
}

// LoadFromFile reads a YAML config on top of Default, applies the API key
// environment override and validates the result.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse is LoadFromFile without the file read.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		cfg.BKK.APIKey = key
	}
	if !strings.HasSuffix(cfg.BKK.BaseURL, "/") {
		cfg.BKK.BaseURL += "/"
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules the tags cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if !c.SACN.Multicast && c.SACN.UnicastIP == "" {
		return errors.New("invalid config: sacn.unicast_ip is required when multicast is disabled")
	}

	seen := make(map[string]bool)
	for _, r := range c.Network.Routes {
		if seen[r.RouteID] {
			return fmt.Errorf("invalid config: duplicate route_id %q", r.RouteID)
		}
		seen[r.RouteID] = true
	}
	return nil
}
