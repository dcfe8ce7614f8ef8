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

// Йоу, чат! Тут живе планування сходинок.
// Кожна сходинка чекає на попередню сходинку свого чанка, а генерація
// ще й на сусідів у радіусі статусу. Робота йде на воркери, а результат
// повертається на головний потік через скриньку, тому ф'ючери записів
// заповнюються тільки там.

package world

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"FlowyChunks/world/chunk"
	"FlowyChunks/world/storage"
	"FlowyChunks/world/task"
	"FlowyChunks/world/ticket"
)

// GetOrScheduleFuture повертає ф'ючер сходинки status, плануючи її при потребі.
// Невдача в поточній епосі повертається як є, в новій епосі сходинка
// планується знову.
func (m *ChunkMap) GetOrScheduleFuture(rec *ChunkRecord, status *chunk.Status) *task.Future[chunk.Result] {
	rg := &rec.rungs[status.Index()]
	if rg.future != nil {
		res, done := rg.future.Now()
		if !done || res.OK() || rg.epoch == rec.epoch {
			return rg.future
		}
	}
	if gen := chunk.GenerationStatus(rec.level); gen == nil || !gen.IsOrAfter(status) {
		if rg.future != nil {
			return rg.future
		}
		return unloadedFuture
	}

	f := m.schedule(rec, status)
	rg.future, rg.epoch = f, rec.epoch
	rec.addSaveDependency(f)
	pos := rec.pos
	f.Then(func(res chunk.Result) {
		m.modified = true
		if res.Err == nil && res.Chunk == nil {
			m.invariant("chunk future resolved to nothing", pos)
			return
		}
		if !res.OK() {
			return
		}
		if !res.Chunk.Status().IsOrAfter(status) {
			m.invariant(fmt.Sprintf("rung %v resolved with a chunk at %v", status, res.Chunk.Status()), pos)
			return
		}
		m.light.UpdateChunkStatus(pos, status)
	})
	return f
}

func (m *ChunkMap) schedule(rec *ChunkRecord, status *chunk.Status) *task.Future[chunk.Result] {
	if status == chunk.Empty {
		return m.scheduleChunkLoad(rec)
	}
	lightLevel := chunk.ByStatus(chunk.Light)
	if status == chunk.Light {
		m.tickets.AddTicket(ticket.Light, rec.pos, lightLevel, rec.pos)
	}

	var f *task.Future[chunk.Result]
	f = task.Compose(m.GetOrScheduleFuture(rec, status.Parent()), func(res chunk.Result) *task.Future[chunk.Result] {
		if !res.OK() {
			return task.Completed(res)
		}
		if f != nil && f.Done() {
			// сходинку вже понизили, робота не потрібна
			return unloadedFuture
		}
		switch {
		case status == chunk.Full:
			return m.scheduleFull(rec, res.Chunk)
		case res.Chunk.Status().IsOrAfter(status):
			return m.scheduleLoadStage(rec, status, res.Chunk)
		default:
			return m.scheduleChunkGeneration(rec, status)
		}
	})
	if status == chunk.Light {
		f.Then(func(chunk.Result) {
			m.tickets.RemoveTicket(ticket.Light, rec.pos, lightLevel, rec.pos)
		})
	}
	return f
}

// submitWork ставить work в чергу q і заповнює ф'ючер результатом на головному потоці.
// Паніка в work стає невдачею сходинки.
func (m *ChunkMap) submitWork(q *task.Queue, rec *ChunkRecord, status *chunk.Status, work func() chunk.Result) *task.Future[chunk.Result] {
	out := task.NewFuture[chunk.Result]()
	pos := rec.pos
	// ф'ючер завжди завершується повідомленням, а не всередині задачі:
	// RunTask ковтає паніки, а порушення інваріантів мають бути фатальними
	q.Submit(pos, rec.queueLevel, func() {
		res := m.runWork(pos, status, work)
		m.execute(func() { out.Complete(res) })
	})
	return out
}

func (m *ChunkMap) runWork(pos chunk.Pos, status *chunk.Status, work func() chunk.Result) (res chunk.Result) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Chunk stage panicked",
				zap.Int32("x", pos[0]), zap.Int32("z", pos[1]),
				zap.Stringer("status", status), zap.Any("panic", r))
			res = chunk.Failed(&chunk.LoadingFailure{Pos: pos, Status: status, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	return work()
}

// scheduleChunkLoad читає чанк зі сховища або створює новий
func (m *ChunkMap) scheduleChunkLoad(rec *ChunkRecord) *task.Future[chunk.Result] {
	out := task.NewFuture[chunk.Result]()
	pos := rec.pos
	m.workers.Submit(pos, rec.queueLevel, func() {
		var (
			fromDisk, corrupt bool
			res               chunk.Result
		)
		res = m.runWork(pos, chunk.Empty, func() chunk.Result {
			var r chunk.Result
			r, fromDisk, corrupt = m.readChunk(pos)
			return r
		})
		m.execute(func() {
			switch {
			case corrupt:
				m.markPosition(pos, chunk.KindProto)
			case fromDisk && res.OK():
				m.markPosition(pos, res.Chunk.Status().Kind())
			}
			out.Complete(res)
		})
	})
	return out
}

// readChunk виконується на воркері
func (m *ChunkMap) readChunk(pos chunk.Pos) (res chunk.Result, fromDisk, corrupt bool) {
	log := m.log.With(zap.Int32("x", pos[0]), zap.Int32("z", pos[1]))
	data, err := m.storage.Read(m.ctx, pos)
	switch {
	case err == nil:
		proto, err := storage.Decode(pos, data)
		if err == nil {
			return chunk.Loaded(proto), true, false
		}
		log.Error("Chunk data is corrupt, generating a new chunk", zap.Error(err))
		corrupt = true
	case errors.Is(err, storage.ErrChunkNotExist):
	case errors.Is(err, storage.ErrInvalidData):
		log.Error("Stored chunk is unreadable, generating a new chunk", zap.Error(err))
		corrupt = true
	default:
		log.Error("Read chunk error", zap.Error(err))
		return chunk.Failed(&chunk.LoadingFailure{Pos: pos, Status: chunk.Empty, Err: err}), false, false
	}

	c, err := m.gen.GenerateStage(m.ctx, chunk.Empty, []chunk.Access{chunk.NewProto(pos, nil)})
	if err != nil {
		return chunk.Failed(&chunk.LoadingFailure{Pos: pos, Status: chunk.Empty, Err: err}), false, corrupt
	}
	return chunk.Loaded(c), false, corrupt
}

// scheduleLoadStage - чанк з диску вже має цей статус, генерувати не треба
func (m *ChunkMap) scheduleLoadStage(rec *ChunkRecord, status *chunk.Status, c chunk.Access) *task.Future[chunk.Result] {
	load := func() chunk.Result {
		loaded, err := m.gen.LoadStage(m.ctx, status, c)
		if err != nil {
			return chunk.Failed(&chunk.LoadingFailure{Pos: rec.pos, Status: status, Err: err})
		}
		return chunk.Loaded(loaded)
	}
	if !status.HasLoadDependencies() {
		return m.submitWork(m.workers, rec, status, load)
	}
	rng := m.chunkRangeFuture(rec, status.Range(), func(d int) *chunk.Status { return dependencyStatus(status, d) })
	return task.Compose(rng, func(rr rangeResult) *task.Future[chunk.Result] {
		if rr.err != nil {
			return task.Completed(chunk.Failed(&chunk.LoadingFailure{Pos: rec.pos, Status: status, Err: rr.err}))
		}
		return m.submitWork(m.workers, rec, status, load)
	})
}

func (m *ChunkMap) scheduleChunkGeneration(rec *ChunkRecord, status *chunk.Status) *task.Future[chunk.Result] {
	rng := m.chunkRangeFuture(rec, status.Range(), func(d int) *chunk.Status { return dependencyStatus(status, d) })
	return task.Compose(rng, func(rr rangeResult) *task.Future[chunk.Result] {
		if rr.err != nil {
			return task.Completed(chunk.Failed(&chunk.LoadingFailure{Pos: rec.pos, Status: status, Err: rr.err}))
		}
		return m.submitWork(m.workers, rec, status, func() chunk.Result {
			c, err := m.gen.GenerateStage(m.ctx, status, rr.chunks)
			if err != nil {
				return chunk.Failed(&chunk.LoadingFailure{Pos: rec.pos, Status: status, Err: err})
			}
			return chunk.Loaded(c)
		})
	})
}

// scheduleFull робить з прото-чанка живий на головному потоці
func (m *ChunkMap) scheduleFull(rec *ChunkRecord, c chunk.Access) *task.Future[chunk.Result] {
	toFull := func() chunk.Result { return m.protoToFull(rec, c) }
	if c.Status().IsOrAfter(chunk.Full) {
		return m.submitWork(m.main, rec, chunk.Full, toFull)
	}
	rng := m.chunkRangeFuture(rec, chunk.Full.Range(), func(d int) *chunk.Status { return dependencyStatus(chunk.Full, d) })
	return task.Compose(rng, func(rr rangeResult) *task.Future[chunk.Result] {
		if rr.err != nil {
			return task.Completed(chunk.Failed(&chunk.LoadingFailure{Pos: rec.pos, Status: chunk.Full, Err: rr.err}))
		}
		return m.submitWork(m.main, rec, chunk.Full, toFull)
	})
}

func (m *ChunkMap) protoToFull(rec *ChunkRecord, c chunk.Access) chunk.Result {
	if gen := chunk.GenerationStatus(rec.level); m.updating[rec.pos.Long()] != rec || gen == nil || !gen.IsOrAfter(chunk.Full) {
		return chunk.Unloaded()
	}
	if rec.live != nil {
		return chunk.Loaded(rec.live)
	}
	if live, ok := chunk.AsLive(c); ok {
		return chunk.Loaded(live)
	}
	// сусіди ще можуть читати прото-чанк на воркерах
	col, err := chunk.CloneColumn(c.Column())
	if err != nil {
		return chunk.Failed(&chunk.LoadingFailure{Pos: rec.pos, Status: chunk.Full, Err: err})
	}
	live := chunk.NewLive(chunk.LoadedProto(rec.pos, c.Status(), col))
	live.SetUnsaved(c.Unsaved())
	live.SetFullStatus(rec.FullStatus)
	live.SetLoaded(true)
	rec.replaceProto(chunk.NewImposter(live))
	m.modified = true
	m.log.Debug("Chunk became live", zap.Int32("x", rec.pos[0]), zap.Int32("z", rec.pos[1]))
	return chunk.Loaded(live)
}

// dependencyStatus - статус, потрібний від сусіда на відстані d
func dependencyStatus(s *chunk.Status, d int) *chunk.Status {
	if d == 0 {
		return s.Parent()
	}
	return chunk.AroundFull(chunk.Distance(s) + d)
}

type rangeResult struct {
	chunks []chunk.Access
	err    error
}

// chunkRangeFuture чекає на квадрат сусідів радіуса radius.
// statusFor отримує відстань Чебишева від центру.
// Чанки йдуть по рядках z, всередині рядка по x, центр посередині.
func (m *ChunkMap) chunkRangeFuture(center *ChunkRecord, radius int, statusFor func(int) *chunk.Status) *task.Future[rangeResult] {
	side := 2*radius + 1
	futures := make([]*task.Future[chunk.Result], 0, side*side)
	positions := make([]chunk.Pos, 0, side*side)
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			pos := center.pos.Offset(int32(dx), int32(dz))
			status := statusFor(max(dx, -dx, dz, -dz))
			rec := m.updating[pos.Long()]
			if rec == nil {
				return task.Completed(rangeResult{err: &chunk.LoadingFailure{Pos: pos, Status: status, Err: chunk.ErrUnloaded}})
			}
			futures = append(futures, m.GetOrScheduleFuture(rec, status))
			positions = append(positions, pos)
		}
	}
	return task.Map(task.All(futures), func(results []chunk.Result) rangeResult {
		chunks := make([]chunk.Access, len(results))
		for i, res := range results {
			if res.OK() {
				chunks[i] = res.Chunk
				continue
			}
			var failure *chunk.LoadingFailure
			if errors.As(res.Err, &failure) {
				return rangeResult{err: failure}
			}
			err := res.Err
			if err == nil {
				err = chunk.ErrUnloaded
			}
			return rangeResult{err: &chunk.LoadingFailure{Pos: positions[i], Err: err}}
		}
		return rangeResult{chunks: chunks}
	})
}

// prepareAccessible: центр на full, сусіди на тому, що потрібно навколо full,
// і світло для чанка дораховане
func (m *ChunkMap) prepareAccessible(rec *ChunkRecord) *task.Future[chunk.Result] {
	rng := m.chunkRangeFuture(rec, 1, chunk.AroundFull)
	return task.Compose(rng, func(rr rangeResult) *task.Future[chunk.Result] {
		if rr.err != nil {
			return task.Completed(chunk.Failed(rr.err))
		}
		center := rr.chunks[len(rr.chunks)/2]
		return task.Map(m.light.WaitForPendingLight(rec.pos), func(struct{}) chunk.Result {
			return chunk.Loaded(center)
		})
	})
}

// prepareTicking: чанк видимий і всі сусіди в радіусі 1 на full
func (m *ChunkMap) prepareTicking(rec *ChunkRecord) *task.Future[chunk.Result] {
	return m.phaseWithRange(rec, phaseBorder, 1)
}

// prepareEntityTicking: чанк тікає і всі сусіди в радіусі 2 на full
func (m *ChunkMap) prepareEntityTicking(rec *ChunkRecord) *task.Future[chunk.Result] {
	return m.phaseWithRange(rec, phaseTicking, 2)
}

func (m *ChunkMap) phaseWithRange(rec *ChunkRecord, below phaseKind, radius int) *task.Future[chunk.Result] {
	prev := rec.phases[below].future
	if prev == nil {
		m.invariant(fmt.Sprintf("phase %v promoted before %v", phaseStatus[below+1], phaseStatus[below]), rec.pos)
		return unloadedFuture
	}
	rng := m.chunkRangeFuture(rec, radius, func(int) *chunk.Status { return chunk.Full })
	return task.Combine(prev, rng, func(res chunk.Result, rr rangeResult) chunk.Result {
		if !res.OK() {
			return res
		}
		if rr.err != nil {
			return chunk.Failed(rr.err)
		}
		return res
	})
}
