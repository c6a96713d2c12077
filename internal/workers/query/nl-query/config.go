// internal/workers/query/nl-query/config.go
package nlquery

import "time"

type Config struct {
	Timeout                time.Duration
	FailOnAllSourcesFailed bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:                75 * time.Second,
		FailOnAllSourcesFailed: true,
	}
}
