// This file is part of go-mc/server project.
// Copyright (C) 2023.  Tnze
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Йоу, чат! Game збирає сервер докупи: читає світ з диску,
// відкриває сховище чанків, запускає світ і ходоків,
// а при зупинці акуратно все зберігає і закриває.

package game

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"FlowyChunks/world"
	"FlowyChunks/world/chunk"
	"FlowyChunks/world/gen"
	"FlowyChunks/world/storage"
	"FlowyChunks/world/ticket"
	"github.com/Tnze/go-mc/level"
)

type Game struct {
	log *zap.Logger

	config    Config
	storage   storage.Storage
	overworld *world.World
	sim       *simulation
	spawn     chunk.Pos
	walkers   []*walker
}

func NewGame(log *zap.Logger, config Config) (*Game, error) {
	log = log.Named("game")
	dir := config.LevelName

	spawn, err := readSpawn(dir)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("No level.dat, using the default spawn")
	} else if err != nil {
		return nil, fmt.Errorf("read level: %w", err)
	}

	st, err := OpenStorage(log.Named("storage"), config, dir)
	if err != nil {
		return nil, err
	}

	sim := newSimulation(log.Named("simulation"))
	overworld := world.New(log.Named("overworld"), config.WorldConfig(), st, gen.NewFlat(), nil, sim)

	g := &Game{
		log:       log,
		config:    config,
		storage:   st,
		overworld: overworld,
		sim:       sim,
		spawn:     spawn,
	}
	players := NewPlayerProvider(filepath.Join(dir, "playerdata"))
	for i, wc := range config.Walkers {
		g.walkers = append(g.walkers, newWalker(log, players, i, wc))
	}
	return g, nil
}

// OpenStorage відкриває сховище чанків, вказане в конфігу
func OpenStorage(log *zap.Logger, config Config, dir string) (st storage.Storage, err error) {
	switch config.Storage {
	case StorageMemory:
		st = storage.NewMemory()
	case StorageSQLite:
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		st, err = storage.OpenSQLite(log, filepath.Join(dir, "chunks.sqlite"))
	default:
		st, err = storage.NewRegion(log, filepath.Join(dir, "region"))
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", config.Storage, err)
	}
	if limiter := config.ChunkLoadingLimiter.Limiter(); limiter != nil {
		st = storage.WithLimiter(st, limiter)
	}
	return st, nil
}

// World повертає головний світ
func (g *Game) World() *world.World { return g.overworld }

// Run тримає спавн завантаженим і крутить світ, поки ctx не скасують.
// Після цього все зберігається і закривається.
func (g *Game) Run(ctx context.Context) (err error) {
	w := g.overworld
	w.AddRegionTicket(ticket.Start, g.spawn, g.config.SpawnRadius, g.spawn)
	g.log.Info("Spawn ticket added", zap.Stringer("spawn", g.spawn), zap.Int("radius", g.config.SpawnRadius))

	limiter := g.config.PlayerChunkLoadingLimiter
	for _, wk := range g.walkers {
		if err := w.AddPlayer(wk, wk.player, limiter.Limiter()); err != nil {
			return err
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return w.Run(ctx) })
	if len(g.walkers) > 0 {
		group.Go(func() error { return g.walk(ctx) })
	}
	err = group.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	err = multierr.Combine(err, w.Close(closeCtx), g.storage.Close())
	g.log.Info("Game stopped",
		zap.Int("ticking", len(g.sim.ticking)),
		zap.Int("entity ticking", len(g.sim.entities)))
	return err
}

// walk рухає ходоків раз на тік
func (g *Game) walk(ctx context.Context) error {
	ticker := time.NewTicker(g.overworld.Config().TickRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for _, wk := range g.walkers {
			if err := g.overworld.MovePlayer(wk.player.ID, wk.step()); err != nil {
				return nil // світ вже закрито
			}
		}
	}
}

// walker - гравець без клієнта, що йде по прямій
type walker struct {
	log      *zap.Logger
	player   world.Player
	velocity [2]float64
	loaded   int
}

func newWalker(log *zap.Logger, players PlayerProvider, i int, wc Walker) *walker {
	id, err := uuid.Parse(wc.UUID)
	if err != nil {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("walker-%d-%s", i, wc.Name)))
	}
	name := wc.Name
	if name == "" {
		name = fmt.Sprintf("walker-%d", i)
	}
	wk := &walker{
		log: log.With(zap.String("walker", name)),
		player: world.Player{
			ID:           id,
			Name:         name,
			Position:     wc.Start,
			ViewDistance: wc.ViewDistance,
		},
		velocity: wc.Velocity,
	}
	pos, err := players.Position(id)
	switch {
	case err == nil:
		wk.player.Position = pos
	case !errors.Is(err, os.ErrNotExist):
		wk.log.Warn("Read player data error", zap.Error(err))
	}
	return wk
}

// step зсуває ходока і повертає нову позицію. Викликається з однієї горутини.
func (wk *walker) step() [3]float64 {
	wk.player.Position[0] += wk.velocity[0]
	wk.player.Position[2] += wk.velocity[1]
	return wk.player.Position
}

func (wk *walker) ViewChunkLoad(pos level.ChunkPos, c *level.Chunk) {
	wk.loaded++
	wk.log.Debug("Chunk sent", zap.Int32("x", pos[0]), zap.Int32("z", pos[1]),
		zap.Int("sections", len(c.Sections)), zap.Int("loaded", wk.loaded))
}

func (wk *walker) ViewChunkUnload(pos level.ChunkPos) {
	wk.loaded--
	wk.log.Debug("Chunk removed", zap.Int32("x", pos[0]), zap.Int32("z", pos[1]), zap.Int("loaded", wk.loaded))
}
