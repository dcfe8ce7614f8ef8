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

// Йоу, чат! Гравець для системи чанків - це лише точка і два радіуси.
// Все інше (мережа, інвентар, чат) живе за межами світу.
// Методи World тут не змінюють стан одразу, а кладуть повідомлення
// на головний потік, тому їх можна кликати з будь-якої горутини.

package world

import (
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"FlowyChunks/world/chunk"
	"FlowyChunks/world/internal/viewtree"
	"FlowyChunks/world/ticket"
)

// Player - джерело квитків видимості і симуляції
type Player struct {
	ID                 uuid.UUID
	Name               string
	Position           [3]float64
	ViewDistance       int // 0 - радіус світу, більше за нього не буває
	SimulationDistance int // 0 - радіус світу
}

// chunkPosition повертає чанк, в якому стоїть гравець
func (p *Player) chunkPosition() chunk.Pos { return chunk.PosOf(p.Position[0], p.Position[2]) }

// view - квадрат чанків, які бачить гравець
func (p *Player) view() viewtree.Rect[int32] {
	return viewtree.Square([2]int32(p.chunkPosition()), int32(p.ViewDistance))
}

func (p *Player) ticketView() ticket.PlayerView {
	return ticket.PlayerView{
		ID:                 p.ID,
		Pos:                p.chunkPosition(),
		ViewDistance:       p.ViewDistance,
		SimulationDistance: p.SimulationDistance,
	}
}

func (w *World) clampDistances(p *Player) {
	if p.ViewDistance <= 0 {
		p.ViewDistance = w.cfg.ViewDistance
	}
	p.ViewDistance = min(p.ViewDistance, w.cfg.ViewDistance)
	if p.SimulationDistance <= 0 {
		p.SimulationDistance = w.cfg.SimulationDistance
	}
	p.SimulationDistance = min(p.SimulationDistance, p.ViewDistance)
}

// AddPlayer додає гравця. Чанки надсилаються viewer не швидше, ніж
// дозволяє limiter (nil - без обмежень).
func (w *World) AddPlayer(viewer ChunkViewer, p Player, limiter *rate.Limiter) error {
	w.clampDistances(&p)
	return w.mailbox.Execute(func() { w.tracker.add(p, viewer, limiter) })
}

// RemovePlayer прибирає гравця разом з усіма його квитками
func (w *World) RemovePlayer(id uuid.UUID) error {
	return w.mailbox.Execute(func() { w.tracker.remove(id) })
}

// MovePlayer переносить гравця в нову точку
func (w *World) MovePlayer(id uuid.UUID, pos [3]float64) error {
	return w.mailbox.Execute(func() { w.tracker.move(id, pos) })
}

// SetPlayerDistances змінює радіуси огляду і симуляції гравця
func (w *World) SetPlayerDistances(id uuid.UUID, view, simulation int) error {
	p := Player{ViewDistance: view, SimulationDistance: simulation}
	w.clampDistances(&p)
	return w.mailbox.Execute(func() { w.tracker.setDistances(id, p.ViewDistance, p.SimulationDistance) })
}
