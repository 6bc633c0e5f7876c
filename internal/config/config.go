package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN      string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL      string `env:"RABBITMQ_URL,required=true"`
	RedisURL         string `env:"REDIS_URL,required=true"`
	PortalBaseURL    string `env:"PORTAL_BASE_URL,required=true"`
	CredentialSecret string `env:"CREDENTIAL_SECRET,required=true"`

	// SessionOpensPerSec bounds how fast the dispatcher may claim new batches,
	// and therefore how fast new portal sessions can be opened.
	SessionOpensPerSec int `env:"SESSION_OPENS_PER_SEC,default=1"`
	// WorkerConcurrency is the number of consumer loops. The portal cannot
	// host concurrent sessions from one automation identity, so this stays 1
	// unless the session lock is pointed at separate identities.
	WorkerConcurrency int `env:"WORKER_CONCURRENCY,default=1"`
	SubmitTimeoutSec  int `env:"SUBMIT_TIMEOUT_SEC,default=10"`
	ReclaimAfterMin   int `env:"RECLAIM_AFTER_MIN,default=60"`
	APIPort           int `env:"API_PORT,default=8080"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
