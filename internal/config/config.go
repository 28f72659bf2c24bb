package config

import (
	"os"
	"time"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server Server `yaml:"server"`
}

type Server struct {
	Listen      string `yaml:"listen"`
	CardAPIBase string `yaml:"cardApiBase"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	RedisPassword string `yaml:"redisPassword"`

	SessionSecret  string        `yaml:"sessionSecret"`
	SessionTTL     time.Duration `yaml:"sessionTTL"`
	EditSessionTTL time.Duration `yaml:"editSessionTTL"`
	ConfirmWindow  time.Duration `yaml:"confirmWindow"`

	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`

	Environment string `yaml:"environment"` // development, production
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.Listen == "" {
		config.Server.Listen = ":8000"
	}
	if config.Server.SessionTTL == 0 {
		config.Server.SessionTTL = 24 * time.Hour
	}
	if config.Server.EditSessionTTL == 0 {
		config.Server.EditSessionTTL = time.Hour
	}
	if config.Server.ConfirmWindow == 0 {
		config.Server.ConfirmWindow = 30 * time.Second
	}

	return config, nil
}
