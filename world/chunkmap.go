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

// Йоу, чат! ChunkMap - реєстр записів чанків.
// Він отримує зміни рівнів від менеджера квитків, створює і прибирає
// записи, планує роботу і публікує знімок для інших горутин.
// Є дві мапи: updating, яку головний потік змінює одразу,
// і опублікований знімок, що підміняється наприкінці тіку.

package world

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"FlowyChunks/world/chunk"
	"FlowyChunks/world/storage"
	"FlowyChunks/world/task"
	"FlowyChunks/world/ticket"
)

// ChunkInfo - незмінний опис чанка в опублікованому знімку
type ChunkInfo struct {
	Pos        chunk.Pos
	Level      int
	Status     *chunk.Status // найвища готова сходинка або nil
	FullStatus chunk.FullStatus
}

// ChunkMap - реєстр записів. Всі методи, крім Visible*, тільки для головного потоку.
type ChunkMap struct {
	log     *zap.Logger
	cfg     Config
	ctx     context.Context
	storage storage.Storage
	gen     Generator
	light   LightEngine
	hooks   Listener
	mailbox *task.Mailbox
	workers *task.Queue
	main    *task.Queue
	tickets *ticket.DistanceManager

	updating       map[int64]*ChunkRecord
	pendingUnloads map[int64]*ChunkRecord
	toDrop         map[int64]struct{}
	toUpdate       []*ChunkRecord
	unloadQueue    []func()
	modified       bool
	published      atomic.Pointer[map[int64]ChunkInfo]

	// chunkTypes пам'ятає, чи на диску лежить живий чанк
	chunkTypes    map[int64]chunk.Kind
	saveCooldowns map[int64]time.Time
}

func newChunkMap(ctx context.Context, log *zap.Logger, cfg Config, st storage.Storage, gen Generator,
	light LightEngine, hooks Listener, mailbox *task.Mailbox, workers, main *task.Queue, tickets *ticket.DistanceManager,
) *ChunkMap {
	m := &ChunkMap{
		log:            log,
		cfg:            cfg,
		ctx:            ctx,
		storage:        st,
		gen:            gen,
		light:          light,
		hooks:          hooks,
		mailbox:        mailbox,
		workers:        workers,
		main:           main,
		tickets:        tickets,
		updating:       make(map[int64]*ChunkRecord),
		pendingUnloads: make(map[int64]*ChunkRecord),
		toDrop:         make(map[int64]struct{}),
		chunkTypes:     make(map[int64]chunk.Kind),
		saveCooldowns:  make(map[int64]time.Time),
	}
	empty := make(map[int64]ChunkInfo)
	m.published.Store(&empty)
	return m
}

// OnLevelChange викликається менеджером квитків
func (m *ChunkMap) OnLevelChange(pos chunk.Pos, level, oldLevel int) {
	key := pos.Long()
	m.updateChunkScheduling(pos, level, m.updating[key], oldLevel)
}

func (m *ChunkMap) updateChunkScheduling(pos chunk.Pos, level int, rec *ChunkRecord, oldLevel int) *ChunkRecord {
	key := pos.Long()
	if !chunk.IsLoaded(oldLevel) && !chunk.IsLoaded(level) {
		return rec
	}
	if rec != nil {
		rec.setLevel(level)
		if chunk.IsLoaded(level) {
			delete(m.toDrop, key)
		} else {
			m.toDrop[key] = struct{}{}
		}
	}
	if chunk.IsLoaded(level) && rec == nil {
		if rec = m.pendingUnloads[key]; rec != nil {
			delete(m.pendingUnloads, key)
			rec.setLevel(level)
			m.log.Debug("Chunk reclaimed from unloading", zap.Int32("x", pos[0]), zap.Int32("z", pos[1]))
		} else {
			rec = newChunkRecord(pos, level)
		}
		m.updating[key] = rec
		m.modified = true
	}
	if rec != nil {
		rec.queueLevel = level
		m.workers.SetLevel(pos, level)
		m.main.SetLevel(pos, level)
		m.toUpdate = append(m.toUpdate, rec)
	}
	return rec
}

// runUpdates застосовує зміни квитків і оновлює ф'ючери записів.
// Повертає true якщо щось змінилось.
func (m *ChunkMap) runUpdates() bool {
	updated := m.tickets.RunUpdates(m)
	if len(m.toUpdate) == 0 {
		return updated
	}
	recs := m.toUpdate
	m.toUpdate = nil
	for _, rec := range recs {
		rec.updateFutures(m)
	}
	m.modified = true
	return true
}

// runUpdatesUntilStable крутить runUpdates, поки квитки змінюються
func (m *ChunkMap) runUpdatesUntilStable() (changed bool) {
	for m.runUpdates() {
		changed = true
	}
	return
}

// Record повертає запис з updating
func (m *ChunkMap) Record(pos chunk.Pos) *ChunkRecord {
	return m.updating[pos.Long()]
}

// Len повертає кількість записів, включно з тими, що вивантажуються
func (m *ChunkMap) Len() int { return len(m.updating) + len(m.pendingUnloads) }

// PendingUnloads повертає кількість записів, що чекають вивантаження
func (m *ChunkMap) PendingUnloads() int { return len(m.pendingUnloads) }

// PromoteSnapshot публікує новий знімок, якщо з минулого разу щось змінилось
func (m *ChunkMap) PromoteSnapshot() bool {
	if !m.modified {
		return false
	}
	m.modified = false
	snap := make(map[int64]ChunkInfo, len(m.updating))
	for key, rec := range m.updating {
		snap[key] = ChunkInfo{
			Pos:        rec.pos,
			Level:      rec.level,
			Status:     rec.LastStatus(),
			FullStatus: rec.EnteredStatus(),
		}
	}
	m.published.Store(&snap)
	return true
}

// Visible повертає опис чанка з опублікованого знімка. Безпечно з будь-якої горутини.
func (m *ChunkMap) Visible(pos chunk.Pos) (ChunkInfo, bool) {
	info, ok := (*m.published.Load())[pos.Long()]
	return info, ok
}

// VisibleAll повертає весь знімок. Мапу не можна змінювати.
func (m *ChunkMap) VisibleAll() map[int64]ChunkInfo {
	return *m.published.Load()
}

// execute виконує fn на головному потоці
func (m *ChunkMap) execute(fn func()) {
	if err := m.mailbox.Execute(fn); err != nil {
		m.log.Debug("Main thread message dropped", zap.Error(err))
	}
}

func (m *ChunkMap) firePhase(pos chunk.Pos, k phaseKind, entered bool, live *chunk.Live) {
	switch {
	case k == phaseBorder && entered:
		m.hooks.ChunkVisible(pos, live)
	case k == phaseBorder:
		m.hooks.ChunkInvisible(pos)
	case k == phaseTicking && entered:
		m.hooks.ChunkTicking(pos, live)
	case k == phaseTicking:
		m.hooks.ChunkNotTicking(pos)
	case k == phaseEntity && entered:
		m.hooks.ChunkEntityTicking(pos, live)
	default:
		m.hooks.ChunkNotEntityTicking(pos)
	}
}

// invariant повідомляє про помилку планувальника разом з дампом усіх ф'ючерів
func (m *ChunkMap) invariant(msg string, pos chunk.Pos) {
	m.log.Panic(msg,
		zap.Int32("x", pos[0]), zap.Int32("z", pos[1]),
		zap.String("futures", m.debugFutures()))
}
