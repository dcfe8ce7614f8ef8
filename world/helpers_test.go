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

package world

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"FlowyChunks/world/chunk"
	"FlowyChunks/world/gen"
	"FlowyChunks/world/storage"
	"FlowyChunks/world/task"
)

func always() bool { return true }

func tick(w *World, n int) {
	for i := 0; i < n; i++ {
		w.Tick(always)
	}
}

type event struct {
	kind string
	pos  chunk.Pos
}

// recorder запам'ятовує всі події слухача по порядку
type recorder struct {
	events []event
}

func (r *recorder) add(kind string, pos chunk.Pos) { r.events = append(r.events, event{kind, pos}) }

func (r *recorder) ChunkVisible(pos chunk.Pos, c *chunk.Live) {
	if c == nil || !c.Loaded() {
		panic(fmt.Sprintf("visible chunk %v is not loaded", pos))
	}
	r.add("visible", pos)
}
func (r *recorder) ChunkInvisible(pos chunk.Pos) { r.add("invisible", pos) }
func (r *recorder) ChunkTicking(pos chunk.Pos, _ *chunk.Live) { r.add("ticking", pos) }
func (r *recorder) ChunkNotTicking(pos chunk.Pos) { r.add("not_ticking", pos) }
func (r *recorder) ChunkEntityTicking(pos chunk.Pos, _ *chunk.Live) { r.add("entity_ticking", pos) }
func (r *recorder) ChunkNotEntityTicking(pos chunk.Pos) { r.add("not_entity_ticking", pos) }
func (r *recorder) ChunkUnloaded(pos chunk.Pos) { r.add("unloaded", pos) }

// of повертає події одного чанка
func (r *recorder) of(pos chunk.Pos) []string {
	var kinds []string
	for _, e := range r.events {
		if e.pos == pos {
			kinds = append(kinds, e.kind)
		}
	}
	return kinds
}

func (r *recorder) count(kind string, pos chunk.Pos) (n int) {
	for _, e := range r.events {
		if e.kind == kind && e.pos == pos {
			n++
		}
	}
	return
}

// syncLight - світло, яке нічого не рахує і ніколи не змушує чекати
type syncLight struct {
	statuses map[chunk.Pos]*chunk.Status
}

func newSyncLight() *syncLight { return &syncLight{statuses: make(map[chunk.Pos]*chunk.Status)} }

func (l *syncLight) UpdateChunkStatus(pos chunk.Pos, status *chunk.Status) {
	if status == nil {
		delete(l.statuses, pos)
		return
	}
	l.statuses[pos] = status
}

func (l *syncLight) WaitForPendingLight(chunk.Pos) *task.Future[struct{}] {
	return task.Completed(struct{}{})
}

type genKey struct {
	pos    chunk.Pos
	status *chunk.Status
}

// testGen - плаский генератор, що рахує виклики, ламається на
// вказаних стадіях і перевіряє, що стадії йдуть по порядку
type testGen struct {
	*gen.Flat

	mu         sync.Mutex
	calls      map[genKey]int
	order      map[chunk.Pos][]int
	fail       map[genKey]bool
	violations []string
}

func newTestGen() *testGen {
	return &testGen{
		Flat:  gen.NewFlat(),
		calls: make(map[genKey]int),
		order: make(map[chunk.Pos][]int),
		fail:  make(map[genKey]bool),
	}
}

func (g *testGen) GenerateStage(ctx context.Context, status *chunk.Status, neighbors []chunk.Access) (chunk.Access, error) {
	center := neighbors[len(neighbors)/2]
	pos := center.Pos()
	key := genKey{pos, status}

	g.mu.Lock()
	g.calls[key]++
	g.order[pos] = append(g.order[pos], status.Index())
	if status != chunk.Empty && !center.Status().IsOrAfter(status.Parent()) {
		g.violations = append(g.violations, fmt.Sprintf("%v: %v generated from %v", pos, status, center.Status()))
	}
	side := 2*status.Range() + 1
	if len(neighbors) != side*side {
		g.violations = append(g.violations, fmt.Sprintf("%v: %v got %d neighbors", pos, status, len(neighbors)))
	}
	fail := g.fail[key]
	g.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("injected failure at %v %v", pos, status)
	}
	return g.Flat.GenerateStage(ctx, status, neighbors)
}

func (g *testGen) setFail(pos chunk.Pos, status *chunk.Status, fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[genKey{pos, status}] = fail
}

func (g *testGen) callCount(pos chunk.Pos, status *chunk.Status) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[genKey{pos, status}]
}

type testWorld struct {
	*World
	rec   *recorder
	light *syncLight
	gen   *testGen
	mem   *storage.Memory
}

// newTestWorld створює світ без воркерів: вся робота виконується
// в Tick на горутині тесту, тому тести детерміновані
func newTestWorld(t *testing.T, cfg Config) *testWorld {
	tw := &testWorld{
		rec:   &recorder{},
		light: newSyncLight(),
		gen:   newTestGen(),
		mem:   storage.NewMemory(),
	}
	tw.World = New(zaptest.NewLogger(t), cfg, tw.mem, tw.gen, tw.light, tw.rec)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tw.Close(ctx); err != nil {
			t.Error(err)
		}
	})
	return tw
}

// pendingFutures повертає позиції записів з незавершеними сходинками
func (w *World) pendingFutures() (stuck []string) {
	for _, rec := range w.chunks.updating {
		for i, rg := range rec.rungs {
			if rg.future != nil && !rg.future.Done() {
				stuck = append(stuck, fmt.Sprintf("%v %v", rec.pos, chunk.ByIndex(i)))
			}
		}
	}
	return
}
