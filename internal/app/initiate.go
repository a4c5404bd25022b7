package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkglog"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkguid"
)

func (a *App) initConfig() {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		slog.Error("failed to init config", "path", a.configPath, "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("tz"))

	pkglog.InitLogging(cfg.GetString("log.level"))

	a.config = cfg
}

func (a *App) initLibraries() {
	a.goroutine = pkgroutine.NewManager(int(a.config.GetInt("goroutine.max")))
	a.uuid = pkguid.NewUUID()

	node, err := newSnowflake(a.config.GetInt("snowflake.node"))
	if err != nil {
		slog.Error("failed to init snowflake", "error", err)
		os.Exit(1)
	}
	a.snowflake = node
}

func (a *App) initHTTPServer() {
	a.router = pkgrouter.NewRouter(a.uuid)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{pkgrouter.HeaderCorrelationID},
		AllowCredentials: true,
	})

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("server.address.http"),
		Handler:           corsHandler.Handler(a.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// initClosers registers the closers every app has. Module closers were
// added by initModules already and run first.
func (a *App) initClosers() {
	a.addCloser("Config", func(context.Context) error {
		return a.config.Close()
	})
}

// newSnowflake uses the configured node, or a random one when node < 0.
func newSnowflake(node int64) (*pkguid.Snowflake, error) {
	if node < 0 {
		return pkguid.NewSnowflake()
	}
	return pkguid.NewSnowflakeNode(node)
}
