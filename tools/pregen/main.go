// pregen заздалегідь генерує квадрат чанків і зберігає їх у світ.
//
//	go run ./tools/pregen -dir world -radius 16
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"FlowyChunks/game"
	"FlowyChunks/world"
	"FlowyChunks/world/chunk"
	"FlowyChunks/world/gen"
)

var (
	dir         = flag.String("dir", "world", "World directory")
	radius      = flag.Int("radius", 8, "Radius in chunks around the center")
	centerX     = flag.Int("x", 0, "Center chunk x")
	centerZ     = flag.Int("z", 0, "Center chunk z")
	storageKind = flag.String("storage", game.StorageRegion, "Chunk storage: region or sqlite")
	workers     = flag.Int("workers", 4, "Generation workers, 0 runs everything on one goroutine")
	writeLevel  = flag.Bool("level", true, "Create level.dat with spawn at the center if it does not exist")
	isDebug     = flag.Bool("debug", false, "Enable debug log output")
)

func main() {
	flag.Parse()
	var logger *zap.Logger
	var err error
	if *isDebug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, logger); err != nil {
		logger.Error("Pregen failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger) (err error) {
	center := chunk.Pos{int32(*centerX), int32(*centerZ)}
	if *writeLevel {
		if err := createLevel(*dir, center); err != nil {
			return err
		}
	}

	st, err := game.OpenStorage(logger.Named("storage"), game.Config{Storage: *storageKind}, *dir)
	if err != nil {
		return err
	}
	w := world.New(logger.Named("overworld"), world.Config{Workers: *workers}, st, gen.NewFlat(), nil, nil)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		err = multierr.Combine(err, w.Close(closeCtx), st.Close())
	}()

	r := int32(*radius)
	var positions []chunk.Pos
	for dz := -r; dz <= r; dz++ {
		for dx := -r; dx <= r; dx++ {
			pos := center.Offset(dx, dz)
			positions = append(positions, pos)
			w.SetForced(pos, true)
		}
	}

	start := time.Now()
	var failed int
	for i, pos := range positions {
		if _, err := w.GetChunk(ctx, pos, chunk.Full, true); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			failed++
			logger.Warn("Chunk failed", zap.Stringer("pos", pos), zap.Error(err))
		}
		if (i+1)%64 == 0 {
			logger.Info("Progress", zap.Int("done", i+1), zap.Int("total", len(positions)))
		}
	}
	logger.Info("Chunks generated",
		zap.Int("total", len(positions)),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(start)))

	for _, pos := range positions {
		w.SetForced(pos, false)
	}
	w.Tick(func() bool { return true })
	return nil
}
