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

// Йоу, чат! Вивантаження і збереження чанків.
// Запис, що випав за межі завантаження, спочатку потрапляє в toDrop,
// потім в pendingUnloads. Звідти його ще можна забрати назад,
// поки не дочекались всіх його ф'ючерів і не зберегли дані.

package world

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"FlowyChunks/world/chunk"
	"FlowyChunks/world/storage"
)

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// ProcessUnloads переносить записи з toDrop в pendingUnloads і виконує
// готові вивантаження. Поки keepTicking повертає true, обробляється все.
// Інакше - не більше UnloadBudget записів, але без ліміту, якщо черга
// більша за UnloadBacklog.
func (m *ChunkMap) ProcessUnloads(keepTicking func() bool) {
	i := 0
	for _, key := range sortedKeys(m.toDrop) {
		if !keepTicking() && i >= m.cfg.UnloadBudget && len(m.toDrop) <= m.cfg.UnloadBacklog {
			break
		}
		delete(m.toDrop, key)
		rec, ok := m.updating[key]
		if !ok {
			continue
		}
		delete(m.updating, key)
		m.pendingUnloads[key] = rec
		m.modified = true
		i++
		m.scheduleUnload(key, rec)
	}

	backlog := max(0, len(m.unloadQueue)-m.cfg.UnloadBacklog)
	for (keepTicking() || backlog > 0) && len(m.unloadQueue) > 0 {
		backlog--
		fn := m.unloadQueue[0]
		m.unloadQueue[0] = nil
		m.unloadQueue = m.unloadQueue[1:]
		fn()
	}

	saved := 0
	for _, key := range sortedKeys(m.updating) {
		if saved >= m.cfg.AutosavePerTick || !keepTicking() {
			break
		}
		if m.saveIfNeeded(m.updating[key]) {
			saved++
		}
	}
}

// scheduleUnload чекає на toSave запису. Якщо поки чекали з'явилась нова
// робота, чекаємо знову.
func (m *ChunkMap) scheduleUnload(key int64, rec *ChunkRecord) {
	f := rec.toSave
	f.Then(func(c chunk.Access) {
		m.unloadQueue = append(m.unloadQueue, func() {
			if rec.toSave != f {
				m.scheduleUnload(key, rec)
				return
			}
			if m.pendingUnloads[key] != rec {
				return // запис забрали назад
			}
			delete(m.pendingUnloads, key)
			m.dropRecord(rec, c)
		})
	})
}

func (m *ChunkMap) dropRecord(rec *ChunkRecord, c chunk.Access) {
	pos := rec.pos
	if c != nil {
		if live, ok := chunk.AsLive(c); ok {
			live.SetLoaded(false)
		}
		m.save(c)
	}
	rec.live = nil
	delete(m.saveCooldowns, pos.Long())
	m.modified = true
	m.light.UpdateChunkStatus(pos, nil)
	m.hooks.ChunkUnloaded(pos)
	m.log.Debug("Chunk unloaded", zap.Int32("x", pos[0]), zap.Int32("z", pos[1]))
}

// save записує чанк, якщо він змінився. Прото-чанк не перезаписує
// живий чанк на диску, а порожні прото-чанки не зберігаються взагалі.
func (m *ChunkMap) save(c chunk.Access) bool {
	if !c.Unsaved() {
		return false
	}
	pos, status := c.Pos(), c.Status()
	log := m.log.With(zap.Int32("x", pos[0]), zap.Int32("z", pos[1]))
	if status.Kind() != chunk.KindLevel {
		if status == chunk.Empty || m.isExistingChunkFull(pos) {
			return false
		}
	}
	data, err := storage.Encode(c)
	if err != nil {
		log.Error("Encode chunk error", zap.Error(err))
		return false
	}
	if err := m.storage.Write(pos, data); err != nil {
		log.Error("Store chunk data error", zap.Error(err))
		return false
	}
	c.SetUnsaved(false)
	m.markPosition(pos, status.Kind())
	return true
}

// saveIfNeeded - автозбереження живого чанка не частіше AutosaveCooldown
func (m *ChunkMap) saveIfNeeded(rec *ChunkRecord) bool {
	c, ok := rec.toSave.Now()
	if !ok || c == nil {
		return false
	}
	if _, live := chunk.AsLive(c); !live {
		return false
	}
	key := rec.pos.Long()
	now := time.Now()
	if until, ok := m.saveCooldowns[key]; ok && now.Before(until) {
		return false
	}
	if !m.save(c) {
		return false
	}
	m.saveCooldowns[key] = now.Add(m.cfg.AutosaveCooldown)
	return true
}

// Save зберігає всі записи. З flush чекає на всі незавершені ф'ючери
// і одразу вивантажує все, що вже не потрібне.
func (m *ChunkMap) Save(ctx context.Context, flush bool) error {
	if !flush {
		for _, key := range sortedKeys(m.updating) {
			if c, ok := m.updating[key].toSave.Now(); ok && c != nil {
				if _, live := chunk.AsLive(c); live {
					m.save(c)
				}
			}
		}
		return nil
	}
	for _, key := range sortedKeys(m.updating) {
		rec, ok := m.updating[key]
		if !ok {
			continue
		}
		if err := m.mailbox.ManagedBlock(ctx, rec.toSave.Done); err != nil {
			return err
		}
		if c, _ := rec.toSave.Now(); c != nil {
			m.save(c)
		}
	}
	m.ProcessUnloads(func() bool { return true })
	return nil
}

func (m *ChunkMap) markPosition(pos chunk.Pos, kind chunk.Kind) {
	m.chunkTypes[pos.Long()] = kind
}

// isExistingChunkFull перевіряє, чи на диску лежить живий чанк.
// Результат кешується.
func (m *ChunkMap) isExistingChunkFull(pos chunk.Pos) bool {
	key := pos.Long()
	if kind, ok := m.chunkTypes[key]; ok {
		return kind == chunk.KindLevel
	}
	kind := chunk.KindProto
	data, err := m.storage.Read(m.ctx, pos)
	switch {
	case err == nil:
		if proto, err := storage.Decode(pos, data); err == nil {
			kind = proto.Status().Kind()
		}
	case !errors.Is(err, storage.ErrChunkNotExist):
		m.log.Error("Read chunk type error", zap.Int32("x", pos[0]), zap.Int32("z", pos[1]), zap.Error(err))
	}
	m.markPosition(pos, kind)
	return kind == chunk.KindLevel
}
