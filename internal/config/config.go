package config

import (
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds process-level simulator settings, not to be confused with
// the OCPP configuration keys each Station carries in its own config store.
// These values apply to every station the process runs and are read once at
// startup; unlike a station template, this file is not watched for changes.
type Config struct {
	IsDebug *bool `yaml:"is_debug"`

	Rpc struct {
		TimeoutSeconds          int `yaml:"timeout_seconds" env-default:"30"`
		DefaultBootRetrySeconds int `yaml:"default_boot_retry_seconds" env-default:"30"`
	} `yaml:"rpc"`

	Status struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		BindIP  string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port    string `yaml:"port" env-default:"9100"`
	} `yaml:"status"`
}

var (
	instance *Config
	once     sync.Once
)

// Load reads the simulator config file once per process. Subsequent calls
// return the cached instance; cleanenv also applies any matching
// environment variable overrides.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		log.Println("reading simulator config")
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			log.Println(desc)
			log.Println(err)
			instance = nil
		}
	})
	return instance, err
}
