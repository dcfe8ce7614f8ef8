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

package game

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"FlowyChunks/world/chunk"
)

func TestGameRun(t *testing.T) {
	config := Config{
		LevelName:    t.TempDir(),
		ViewDistance: 2,
		Workers:      2,
		TickRate:     duration{5 * time.Millisecond},
		Storage:      StorageMemory,
		Walkers: []Walker{
			{Name: "east", Start: [3]float64{8, 64, 8}, Velocity: [2]float64{1, 0}},
		},
	}.withDefaults()
	if err := config.validate(); err != nil {
		t.Fatal(err)
	}

	g, err := NewGame(zaptest.NewLogger(t), config)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if g.walkers[0].loaded <= 0 {
		t.Error("walker received no chunks")
	}
	if len(g.sim.ticking) == 0 {
		t.Error("no chunk ever started ticking")
	}
	if pos := g.walkers[0].player.Position; pos[0] <= 8 {
		t.Errorf("walker did not move: %v", pos)
	}
}

func TestWalkerIDs(t *testing.T) {
	players := NewPlayerProvider(t.TempDir())
	log := zaptest.NewLogger(t)

	a := newWalker(log, players, 0, Walker{Name: "a"})
	again := newWalker(log, players, 0, Walker{Name: "a"})
	b := newWalker(log, players, 1, Walker{Name: "a"})
	if a.player.ID != again.player.ID || a.player.ID == b.player.ID {
		t.Error("walker ids are not stable per index and name")
	}

	id := uuid.New()
	c := newWalker(log, players, 2, Walker{UUID: id.String(), Start: [3]float64{1, 2, 3}})
	if c.player.ID != id || c.player.Position != [3]float64{1, 2, 3} {
		t.Errorf("walker %+v", c.player)
	}
	if c.player.Name != "walker-2" {
		t.Errorf("default name %q", c.player.Name)
	}
}

func TestMissingLevel(t *testing.T) {
	if _, err := readSpawn(t.TempDir()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("want not exist, got %v", err)
	}
	if _, err := NewPlayerProvider(t.TempDir()).Position(uuid.New()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("want not exist, got %v", err)
	}
}

func TestSimulationOrder(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sim := newSimulation(zap.New(core))
	pos := chunk.Pos{1, 2}
	live := chunk.NewLive(chunk.NewProto(pos, nil))

	sim.ChunkTicking(pos, live)
	sim.ChunkEntityTicking(pos, live)
	sim.ChunkNotEntityTicking(pos)
	sim.ChunkNotTicking(pos)
	sim.ChunkUnloaded(pos)
	if logs.Len() != 0 {
		t.Fatalf("unexpected warnings: %v", logs.All())
	}

	sim.ChunkEntityTicking(pos, live)
	sim.ChunkTicking(pos, live)
	sim.ChunkUnloaded(pos)
	if n := logs.FilterMessage("Entities ticking in a chunk that is not ticking").Len(); n != 1 {
		t.Errorf("out of order warning logged %d times", n)
	}
	if n := logs.FilterMessage("Ticking chunk unloaded").Len(); n != 1 {
		t.Errorf("unload warning logged %d times", n)
	}
	if len(sim.ticking) != 0 || len(sim.entities) != 0 {
		t.Error("unloaded chunk still tracked")
	}
}
