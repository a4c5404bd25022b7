package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/simtrack/internal/sim"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.sim.enabled") {
		closeFn, err := sim.New(sim.Dependency{
			Config:    a.config,
			Router:    a.router,
			Goroutine: a.goroutine,
			Context:   a.ctx,
			ID:        a.uuid,
			RowID:     a.snowflake,
		})
		if err != nil {
			slog.Error("failed to init module sim", "error", err)
			os.Exit(1)
		}
		if closeFn != nil {
			a.addCloser("SIM", closeFn)
		}
	}
}
