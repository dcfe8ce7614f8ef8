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

package ticket

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"FlowyChunks/world/chunk"
)

// Listener отримує зміни рівнів після RunUpdates
type Listener interface {
	OnLevelChange(pos chunk.Pos, level, oldLevel int)
}

// ListenerFunc дозволяє використати функцію як Listener
type ListenerFunc func(pos chunk.Pos, level, oldLevel int)

func (f ListenerFunc) OnLevelChange(pos chunk.Pos, level, oldLevel int) { f(pos, level, oldLevel) }

// DistanceManager зберігає квитки і рахує з них рівні чанків.
// Всі методи викликаються тільки з головного потоку.
type DistanceManager struct {
	log     *zap.Logger
	tickets map[int64]ticketSet
	graph   *levelGraph
	// changed - чанки, чиє джерело змінилось з останнього RunUpdates,
	// і рівень джерела до першої зміни
	changed map[int64]int
	ticks   uint64
}

func NewDistanceManager(log *zap.Logger) *DistanceManager {
	d := &DistanceManager{
		log:     log,
		tickets: make(map[int64]ticketSet),
		changed: make(map[int64]int),
	}
	d.graph = newLevelGraph(chunk.MaxLevel, d.source)
	return d
}

func (d *DistanceManager) source(key int64) int {
	return d.tickets[key].min()
}

func (d *DistanceManager) markChanged(key int64, oldSource int) {
	if _, ok := d.changed[key]; !ok {
		d.changed[key] = oldSource
	}
}

// AddTicket додає квиток. Рівень понад MaxLevel ігнорується,
// від'ємний - обрізається до 0. Повторне додавання того ж квитка
// лише оновлює час його створення.
func (d *DistanceManager) AddTicket(typ *Type, pos chunk.Pos, level int, payload any) {
	if level > chunk.MaxLevel {
		return
	}
	t := &Ticket{Type: typ, Level: max(level, 0), Payload: payload, created: d.ticks}
	key := pos.Long()
	set := d.tickets[key]
	if i := set.find(t); i >= 0 {
		set[i].created = d.ticks
		return
	}
	old := set.min()
	d.tickets[key] = set.insert(t)
	if t.Level < old {
		d.markChanged(key, old)
	}
}

// RemoveTicket прибирає квиток. Невідомий квиток ігнорується.
func (d *DistanceManager) RemoveTicket(typ *Type, pos chunk.Pos, level int, payload any) {
	if level > chunk.MaxLevel {
		return
	}
	key := pos.Long()
	set := d.tickets[key]
	i := set.find(&Ticket{Type: typ, Level: max(level, 0), Payload: payload})
	if i < 0 {
		return
	}
	d.removeAt(key, i)
}

func (d *DistanceManager) removeAt(key int64, i int) {
	set := d.tickets[key]
	old := set.min()
	set = set.remove(i)
	if len(set) == 0 {
		delete(d.tickets, key)
	} else {
		d.tickets[key] = set
	}
	if set.min() != old {
		d.markChanged(key, old)
	}
}

// AddRegionTicket додає квиток, що робить чанки в радіусі radius повністю
// завантаженими
func (d *DistanceManager) AddRegionTicket(typ *Type, pos chunk.Pos, radius int, payload any) {
	d.AddTicket(typ, pos, chunk.FullLevel-radius, payload)
}

func (d *DistanceManager) RemoveRegionTicket(typ *Type, pos chunk.Pos, radius int, payload any) {
	d.RemoveTicket(typ, pos, chunk.FullLevel-radius, payload)
}

// PurgeStaleTickets просуває годинник квитків і видаляє прострочені
func (d *DistanceManager) PurgeStaleTickets() {
	d.ticks++
	for key, set := range d.tickets {
		for i := len(set) - 1; i >= 0; i-- {
			if set[i].timedOut(d.ticks) {
				d.log.Debug("Ticket expired", zap.Stringer("ticket", set[i]), zap.Stringer("pos", chunk.FromLong(key)))
				d.removeAt(key, i)
				set = d.tickets[key]
			}
		}
	}
}

// RunUpdates перераховує рівні і викликає listener рівно один раз
// для кожного чанка, чий рівень змінився. Повертає true якщо змін було.
func (d *DistanceManager) RunUpdates(l Listener) bool {
	if len(d.changed) == 0 {
		return false
	}
	changed := d.changed
	d.changed = make(map[int64]int)

	touched := d.graph.update(changed)
	updated := false
	for _, key := range sortedKeys(touched) {
		old, level := touched[key], d.graph.level(key)
		if old == level {
			continue
		}
		updated = true
		l.OnLevelChange(chunk.FromLong(key), level, old)
	}
	return updated
}

// HasPendingUpdates повідомляє чи є незастосовані зміни квитків
func (d *DistanceManager) HasPendingUpdates() bool { return len(d.changed) > 0 }

// Level повертає обчислений рівень чанка
func (d *DistanceManager) Level(pos chunk.Pos) int {
	return d.graph.level(pos.Long())
}

// Tickets повертає копії квитків чанка
func (d *DistanceManager) Tickets(pos chunk.Pos) []Ticket {
	set := d.tickets[pos.Long()]
	out := make([]Ticket, len(set))
	for i, t := range set {
		out[i] = *t
	}
	return out
}

// TicketCount повертає загальну кількість квитків
func (d *DistanceManager) TicketCount() (n int) {
	for _, set := range d.tickets {
		n += len(set)
	}
	return
}

// LoadedCount повертає кількість чанків з рівнем не вище MaxLevel
func (d *DistanceManager) LoadedCount() int { return len(d.graph.levels) }

// Ticks повертає поточний час годинника квитків
func (d *DistanceManager) Ticks() uint64 { return d.ticks }

// DebugString описує квитки чанка
func (d *DistanceManager) DebugString(pos chunk.Pos) string {
	set := d.tickets[pos.Long()]
	if len(set) == 0 {
		return "no_ticket"
	}
	parts := make([]string, len(set))
	for i, t := range set {
		parts[i] = t.String()
	}
	return fmt.Sprintf("%s level=%d", strings.Join(parts, ", "), d.Level(pos))
}
