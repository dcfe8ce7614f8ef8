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

// Йоу, чат! ChunkRecord - це все, що світ знає про один чанк.
// Для кожної сходинки драбини тут лежить ф'ючер з результатом,
// а над ними ще три фази: чанк видно, чанк тікає, сутності тікають.
// Змінює запис тільки головний потік.

package world

import (
	"go.uber.org/zap"

	"FlowyChunks/world/chunk"
	"FlowyChunks/world/task"
)

// rung - ф'ючер однієї сходинки і епоха, в якій його заплановано
type rung struct {
	future *task.Future[chunk.Result]
	epoch  uint64
}

type phaseKind int

const (
	phaseBorder phaseKind = iota
	phaseTicking
	phaseEntity
)

var phaseStatus = [...]chunk.FullStatus{chunk.BorderVisible, chunk.BlockTicking, chunk.EntityTicking}

// phase - похідна фаза життя чанка.
// epoch змінюється при кожному просуванні і пониженні, тому
// запізнілі завершення старого просування відкидаються.
type phase struct {
	future   *task.Future[chunk.Result]
	epoch    uint64
	recEpoch uint64 // епоха запису на момент просування
	entered  bool
}

// ChunkRecord - стан одного чанка
type ChunkRecord struct {
	pos        chunk.Pos
	level      int
	oldLevel   int
	queueLevel int
	epoch      uint64

	rungs  []rung
	phases [3]phase

	// toSave заповнюється останнім успішним чанком, коли всі
	// заплановані сходинки завершились
	toSave   *task.Future[chunk.Access]
	replaced bool
	live     *chunk.Live
}

var unloadedFuture = task.Completed(chunk.Unloaded())

func newChunkRecord(pos chunk.Pos, level int) *ChunkRecord {
	return &ChunkRecord{
		pos:        pos,
		level:      level,
		oldLevel:   chunk.NotLoaded,
		queueLevel: level,
		rungs:      make([]rung, chunk.Count()),
		toSave:     task.Completed[chunk.Access](nil),
	}
}

func (r *ChunkRecord) Pos() chunk.Pos { return r.pos }
func (r *ChunkRecord) Level() int     { return r.level }
func (r *ChunkRecord) Epoch() uint64  { return r.epoch }

// FullStatus - фаза, на яку вказує поточний рівень
func (r *ChunkRecord) FullStatus() chunk.FullStatus { return chunk.FullStatusAt(r.level) }

// FutureIfPresent повертає ф'ючер сходинки, не плануючи її.
// Для сходинок, яких ще не просили, повертається заглушка "вивантажено".
func (r *ChunkRecord) FutureIfPresent(s *chunk.Status) *task.Future[chunk.Result] {
	if f := r.rungs[s.Index()].future; f != nil {
		return f
	}
	return unloadedFuture
}

// LastAvailable повертає чанк з найвищої успішної сходинки
func (r *ChunkRecord) LastAvailable() chunk.Access {
	for i := len(r.rungs) - 1; i >= 0; i-- {
		if f := r.rungs[i].future; f != nil {
			if res, ok := f.Now(); ok && res.OK() {
				return res.Chunk
			}
		}
	}
	return nil
}

// LastStatus повертає найвищий успішний статус або nil
func (r *ChunkRecord) LastStatus() *chunk.Status {
	for i := len(r.rungs) - 1; i >= 0; i-- {
		if f := r.rungs[i].future; f != nil {
			if res, ok := f.Now(); ok && res.OK() {
				return chunk.ByIndex(i)
			}
		}
	}
	return nil
}

func (r *ChunkRecord) phaseChunk(k phaseKind) *chunk.Live {
	p := r.phases[k]
	if p.future == nil || !p.entered {
		return nil
	}
	res, ok := p.future.Now()
	if !ok || !res.OK() {
		return nil
	}
	live, _ := chunk.AsLive(res.Chunk)
	return live
}

// FullChunk повертає живий чанк, якщо він видимий
func (r *ChunkRecord) FullChunk() *chunk.Live { return r.phaseChunk(phaseBorder) }

// TickingChunk повертає живий чанк, якщо він тікає
func (r *ChunkRecord) TickingChunk() *chunk.Live { return r.phaseChunk(phaseTicking) }

// EntityTickingChunk повертає живий чанк, якщо в ньому тікають сутності
func (r *ChunkRecord) EntityTickingChunk() *chunk.Live { return r.phaseChunk(phaseEntity) }

// EnteredStatus - найвища фаза, про яку вже повідомлено слухачам
func (r *ChunkRecord) EnteredStatus() chunk.FullStatus {
	for k := phaseEntity; k >= phaseBorder; k-- {
		if r.phases[k].entered {
			return phaseStatus[k]
		}
	}
	return chunk.Inaccessible
}

func (r *ChunkRecord) setLevel(level int) { r.level = level }

// addSaveDependency додає ф'ючер до ланцюга toSave
func (r *ChunkRecord) addSaveDependency(f *task.Future[chunk.Result]) {
	r.toSave = task.Combine(r.toSave, f, func(c chunk.Access, res chunk.Result) chunk.Access {
		if res.OK() {
			return res.Chunk
		}
		return c
	})
}

// replaceProto підставляє imposter замість прото-чанків на всіх
// успішних сходинках. Робиться один раз, коли чанк стає живим.
func (r *ChunkRecord) replaceProto(imposter *chunk.Imposter) {
	if r.replaced {
		return
	}
	r.replaced = true
	r.live = imposter.Wrapped()
	for i := range r.rungs {
		f := r.rungs[i].future
		if f == nil {
			continue
		}
		if res, ok := f.Now(); ok && res.OK() {
			if _, proto := res.Chunk.(*chunk.Proto); proto {
				r.rungs[i].future = task.Completed(chunk.Loaded(imposter))
			}
		}
	}
	r.addSaveDependency(task.Completed(chunk.Loaded(imposter.Wrapped())))
}

// updateFutures застосовує зміну рівня: заглушки для сходинок, які
// більше не потрібні, пониження фаз зверху вниз, потім просування знизу вгору
func (r *ChunkRecord) updateFutures(m *ChunkMap) {
	oldLevel, newLevel := r.oldLevel, r.level
	r.oldLevel = newLevel
	if oldLevel == newLevel {
		return
	}
	r.epoch++

	oldGen, newGen := chunk.GenerationStatus(oldLevel), chunk.GenerationStatus(newLevel)
	if oldGen != nil {
		start := 0
		if newGen != nil {
			start = newGen.Index() + 1
		}
		for i := start; i <= oldGen.Index(); i++ {
			rg := &r.rungs[i]
			if rg.future == nil {
				rg.future, rg.epoch = unloadedFuture, r.epoch
			} else {
				// незавершена робота доробить своє, але результат буде відкинуто
				rg.future.Complete(chunk.Unloaded())
			}
		}
	}

	target := chunk.FullStatusAt(newLevel)
	for k := phaseEntity; k >= phaseBorder; k-- {
		if !target.IsOrAfter(phaseStatus[k]) {
			r.demote(m, k)
		}
	}
	for k := phaseBorder; k <= phaseEntity; k++ {
		if target.IsOrAfter(phaseStatus[k]) {
			r.promote(m, k)
		}
	}
}

func (r *ChunkRecord) demote(m *ChunkMap, k phaseKind) {
	p := &r.phases[k]
	if p.future == nil {
		return
	}
	p.future.Complete(chunk.Unloaded())
	p.future = nil
	p.epoch++
	if p.entered {
		p.entered = false
		m.modified = true
		m.firePhase(r.pos, k, false, nil)
	}
}

func (r *ChunkRecord) promote(m *ChunkMap, k phaseKind) {
	p := &r.phases[k]
	if p.future != nil {
		res, done := p.future.Now()
		if !done || res.OK() || p.recEpoch == r.epoch {
			return
		}
		// невдача минулої епохи, пробуємо ще раз
		m.log.Debug("Retry chunk phase", zap.Int32("x", r.pos[0]), zap.Int32("z", r.pos[1]),
			zap.Stringer("phase", phaseStatus[k]))
	}
	var f *task.Future[chunk.Result]
	switch k {
	case phaseBorder:
		f = m.prepareAccessible(r)
	case phaseTicking:
		f = m.prepareTicking(r)
	case phaseEntity:
		f = m.prepareEntityTicking(r)
	}
	p.epoch++
	p.future, p.recEpoch = f, r.epoch
	epoch := p.epoch
	f.Then(func(res chunk.Result) {
		if !res.OK() {
			return
		}
		m.execute(func() {
			p := &r.phases[k]
			if p.epoch != epoch || p.entered {
				return
			}
			live, ok := chunk.AsLive(res.Chunk)
			if !ok {
				m.invariant("phase resolved without a live chunk", r.pos)
				return
			}
			p.entered = true
			m.modified = true
			m.firePhase(r.pos, k, true, live)
		})
	})
}
