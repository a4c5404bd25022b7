package bulk

import (
	"context"
	"log/slog"
	"math"

	"github.com/shandysiswandi/simtrack/internal/sim/entity"
)

// Progress is delivered after every committed chunk.
type Progress struct {
	Percent  int
	Inserted int
	Total    int
	Chunk    []entity.SimCard
	Errors   []error
}

// ProgressFunc receives progress notifications. It runs on the inserting
// goroutine, so the next chunk waits for it to return. A panic inside it is
// recovered and logged; the upload continues.
type ProgressFunc func(ctx context.Context, p Progress)

func percentOf(inserted, total int) int {
	if total <= 0 {
		return 100
	}
	return min(100, int(math.Round(float64(inserted)/float64(total)*100)))
}

func report(ctx context.Context, fn ProgressFunc, p Progress) {
	if fn == nil {
		slog.InfoContext(ctx, "bulk insert progress",
			"percent", p.Percent,
			"inserted", p.Inserted,
			"total", p.Total,
			"chunk_size", len(p.Chunk),
			"errors", len(p.Errors),
		)
		return
	}

	defer func() {
		if rvr := recover(); rvr != nil {
			slog.WarnContext(ctx, "progress callback panicked", "panic", rvr, "percent", p.Percent)
		}
	}()

	fn(ctx, p)
}
