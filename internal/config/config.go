package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	WebRTC   WebRTCConfig   `yaml:"webrtc"`
	Media    MediaConfig    `yaml:"media"`
	Chat     ChatConfig     `yaml:"chat"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

type DatabaseConfig struct {
	// DSN may be empty: the record store then falls back to in-memory
	// repositories, which is enough for the relay itself.
	DSN string `yaml:"dsn" env:"DATABASE_DSN" env-default:""`
}

type WebRTCConfig struct {
	STUNServers []string `yaml:"stun_servers" env-default:""`
}

type MediaConfig struct {
	// WaitTimeout bounds how long a client waits for local media before
	// announcing room membership or offering without it.
	WaitTimeout time.Duration `yaml:"wait_timeout" env:"MEDIA_WAIT_TIMEOUT" env-default:"5s"`
}

type ChatConfig struct {
	RateLimit    int           `yaml:"rate_limit" env-default:"20"`
	RateInterval time.Duration `yaml:"rate_interval" env-default:"10s"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.Media.WaitTimeout <= 0 {
		c.Media.WaitTimeout = 5 * time.Second
	}
	if c.Chat.RateLimit <= 0 {
		c.Chat.RateLimit = 20
	}
	if c.Chat.RateInterval <= 0 {
		c.Chat.RateInterval = 10 * time.Second
	}
}
