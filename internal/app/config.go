package app

import (
	"time"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkgconfig"
)

// EnvPrefix prefixes environment overrides, e.g. SIMTRACK_DATABASE_DSN.
const EnvPrefix = "SIMTRACK"

var defaults = map[string]any{
	"tz":                           "UTC",
	"log.level":                    "info",
	"server.address.http":          ":8080",
	"goroutine.max":                100,
	"snowflake.node":               -1,
	"modules.sim.enabled":          true,
	"modules.sim.chunk_size":       50,
	"modules.sim.max_upload_bytes": 32 << 20,
	"database.driver":              "memory",
	"database.dsn":                 "",
	"event.buffer":                 512,
	"event.workers":                4,
	"event.max_retries":            3,
	"event.base_backoff":           200 * time.Millisecond,
}

// LoadConfig reads the YAML file at path with environment overrides on top.
func LoadConfig(path string) (pkgconfig.Config, error) {
	return pkgconfig.NewViper(path, pkgconfig.Options{
		EnvPrefix: EnvPrefix,
		Defaults:  defaults,
	})
}
