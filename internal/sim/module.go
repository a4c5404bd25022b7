package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkguid"
	"github.com/shandysiswandi/simtrack/internal/sim/event"
	"github.com/shandysiswandi/simtrack/internal/sim/inbound"
	"github.com/shandysiswandi/simtrack/internal/sim/store"
	"github.com/shandysiswandi/simtrack/internal/sim/usecase"
)

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context
	ID        pkguid.StringID
	RowID     pkguid.NumberID
}

type storage interface {
	usecase.Store
	Close() error
}

// New wires the module and mounts its HTTP routes.
func New(dep Dependency) (func(context.Context) error, error) {
	if dep.Router == nil {
		return nil, errors.New("sim: router is required")
	}

	uc, closer, err := Open(dep)
	if err != nil {
		return nil, err
	}

	inbound.RegisterHTTPEndpoint(dep.Router, uc, dep.Config.GetInt("modules.sim.max_upload_bytes"))

	return closer, nil
}

// Open builds the usecase with its store and event consumer. The returned
// closer drains pending events before closing the store.
func Open(dep Dependency) (*usecase.Usecase, func(context.Context) error, error) {
	if dep.Config == nil {
		return nil, nil, errors.New("sim: config is required")
	}
	if dep.Context == nil {
		dep.Context = context.Background()
	}
	if dep.ID == nil {
		dep.ID = pkguid.NewUUID()
	}
	if dep.RowID == nil {
		node, err := pkguid.NewSnowflake()
		if err != nil {
			return nil, nil, fmt.Errorf("sim: snowflake: %w", err)
		}
		dep.RowID = node
	}
	if dep.Goroutine == nil {
		dep.Goroutine = pkgroutine.NewManager(int(dep.Config.GetInt("goroutine.max")))
	}

	st, err := openStore(dep.Context, dep.Config)
	if err != nil {
		return nil, nil, err
	}

	bus := event.NewBus(int(dep.Config.GetInt("event.buffer")))
	consumer := event.NewConsumer(bus, event.NewAuditHandler(st, dep.RowID), event.ConsumerConfig{
		Workers:     int(dep.Config.GetInt("event.workers")),
		MaxRetries:  int(dep.Config.GetInt("event.max_retries")),
		BaseBackoff: dep.Config.GetDuration("event.base_backoff"),
	})
	consumer.Start()

	uc := usecase.New(usecase.Dependency{
		Store:     st,
		Events:    bus,
		Runner:    dep.Goroutine,
		ID:        dep.ID,
		RowID:     dep.RowID,
		RootCtx:   dep.Context,
		ChunkSize: int(dep.Config.GetInt("modules.sim.chunk_size")),
	})

	closer := func(ctx context.Context) error {
		return errors.Join(consumer.Stop(ctx), st.Close())
	}

	return uc, closer, nil
}

func openStore(ctx context.Context, cfg pkgconfig.Config) (storage, error) {
	driver := cfg.GetString("database.driver")
	switch driver {
	case "", "memory":
		slog.InfoContext(ctx, "using in-memory sim card store")
		return store.NewInMemoryStore(), nil
	default:
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		st, err := store.OpenSQL(openCtx, driver, cfg.GetString("database.dsn"))
		if err != nil {
			return nil, fmt.Errorf("sim: open %s store: %w", driver, err)
		}
		slog.InfoContext(ctx, "using sql sim card store", "driver", driver)
		return st, nil
	}
}
