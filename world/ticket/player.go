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
	"github.com/google/uuid"

	"FlowyChunks/world/chunk"
)

// PlayerView - те, що трекер гравців повідомляє кожен тік
type PlayerView struct {
	ID                 uuid.UUID
	Pos                chunk.Pos
	ViewDistance       int
	SimulationDistance int
}

// inView перевіряє чи чанк pos в квадраті видимості
func (v PlayerView) inView(pos chunk.Pos) bool {
	return int(v.Pos.Chebyshev(pos)) <= v.ViewDistance
}

// simulationLevel - рівень квитка симуляції: сутності тікають
// в радіусі SimulationDistance-1, блоки - ще на одне кільце далі
func (v PlayerView) simulationLevel() int {
	return max(chunk.EntityTickingLevel-v.SimulationDistance+1, 0)
}

// PlayerTickets перетворює позиції гравців на квитки.
// Квитки видимості стоять на кожному чанку в радіусі огляду на рівні full,
// а один квиток симуляції в чанку гравця відповідає за тікання.
type PlayerTickets struct {
	dm    *DistanceManager
	views map[uuid.UUID]PlayerView
}

func NewPlayerTickets(dm *DistanceManager) *PlayerTickets {
	return &PlayerTickets{dm: dm, views: make(map[uuid.UUID]PlayerView)}
}

// Update застосовує нові позиції гравців. Гравці, яких немає в views,
// втрачають всі свої квитки. Застосовується тільки різниця з минулим тіком.
func (p *PlayerTickets) Update(views []PlayerView) {
	seen := make(map[uuid.UUID]struct{}, len(views))
	for _, v := range views {
		v := v
		seen[v.ID] = struct{}{}
		old, ok := p.views[v.ID]
		switch {
		case !ok:
			p.addView(v, nil)
			p.addSimulation(v)
		case old != v:
			p.removeView(old, &v)
			p.addView(v, &old)
			if old.Pos != v.Pos || old.SimulationDistance != v.SimulationDistance {
				p.removeSimulation(old)
				p.addSimulation(v)
			}
		}
		p.views[v.ID] = v
	}
	for id, old := range p.views {
		if _, ok := seen[id]; !ok {
			p.removeView(old, nil)
			p.removeSimulation(old)
			delete(p.views, id)
		}
	}
}

// Views повертає кількість відстежуваних гравців
func (p *PlayerTickets) Views() int { return len(p.views) }

func (p *PlayerTickets) addView(v PlayerView, except *PlayerView) {
	forSquare(v, func(pos chunk.Pos) {
		if except == nil || !except.inView(pos) {
			p.dm.AddTicket(Player, pos, chunk.FullLevel, v.ID)
		}
	})
}

func (p *PlayerTickets) removeView(v PlayerView, except *PlayerView) {
	forSquare(v, func(pos chunk.Pos) {
		if except == nil || !except.inView(pos) {
			p.dm.RemoveTicket(Player, pos, chunk.FullLevel, v.ID)
		}
	})
}

func (p *PlayerTickets) addSimulation(v PlayerView) {
	if v.SimulationDistance > 0 {
		p.dm.AddTicket(PlayerSimulation, v.Pos, v.simulationLevel(), v.ID)
	}
}

func (p *PlayerTickets) removeSimulation(v PlayerView) {
	if v.SimulationDistance > 0 {
		p.dm.RemoveTicket(PlayerSimulation, v.Pos, v.simulationLevel(), v.ID)
	}
}

func forSquare(v PlayerView, fn func(pos chunk.Pos)) {
	r := int32(v.ViewDistance)
	for dz := -r; dz <= r; dz++ {
		for dx := -r; dx <= r; dx++ {
			fn(v.Pos.Offset(dx, dz))
		}
	}
}
