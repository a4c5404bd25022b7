package app

import (
	"context"
	"net/http"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkglog"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkguid"
)

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	configPath string
	config     pkgconfig.Config

	// libraries
	uuid      pkguid.StringID
	snowflake pkguid.NumberID
	goroutine *pkgroutine.Manager

	// server
	router     *pkgrouter.Router
	httpServer *http.Server

	// closers run in registration order on Stop
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

func (a *App) addCloser(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func New(configPath string) *App {
	pkglog.InitLogging("info")

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:        ctx,
		cancel:     cancel,
		configPath: configPath,
	}

	app.initConfig()
	app.initLibraries()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
