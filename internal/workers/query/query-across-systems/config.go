// internal/workers/query/query-across-systems/config.go
package queryacrosssystems

import "time"

type Config struct {
	Timeout time.Duration
	// FailOnAllSourcesFailed throws ALL_SOURCES_FAILED when no selected source answered.
	FailOnAllSourcesFailed bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:                70 * time.Second,
		FailOnAllSourcesFailed: true,
	}
}
