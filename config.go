package hal

import (
	"os"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds the settings read from the environment.
type Config struct {
	LogLevel      string `env:"HAL_LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"HAL_LOG_FILE"`
	LogMaxSize    int    `env:"HAL_LOG_MAX_SIZE" envDefault:"100"`
	LogMaxBackups int    `env:"HAL_LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAge     int    `env:"HAL_LOG_MAX_AGE" envDefault:"28"`

	// ConstantCacheSize bounds the constant cache of classes, 0 is unbounded.
	ConstantCacheSize int `env:"HAL_CONSTANT_CACHE_SIZE" envDefault:"0"`
	NativeStackDepth  int `env:"HAL_NATIVE_STACK_DEPTH" envDefault:"10"`
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFrom reads a dotenv file and layers it over the process
// environment. Variables in the file win.
func LoadConfigFrom(envfile string) (Config, error) {
	vars, err := godotenv.Read(envfile)
	if err != nil {
		return Config{}, err
	}

	environment := make(map[string]string, len(vars))
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environment[k] = v
		}
	}
	for k, v := range vars {
		environment[k] = v
	}

	cfg := Config{}
	if err := env.Parse(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Apply installs a logger built from the config as the package logger and
// sets the default constant cache size of classes materialized afterwards.
func (cfg Config) Apply() error {
	l, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	SetLogger(l)
	SetDefaultCacheSize(cfg.ConstantCacheSize)
	return nil
}
