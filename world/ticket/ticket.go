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

// Package ticket веде облік квитків - причин тримати чанк завантаженим -
// і рахує з них потрібний рівень для кожного чанка.
package ticket

import (
	"fmt"

	"FlowyChunks/world/chunk"
)

// Type - тип квитка. Timeout в тіках, 0 означає що квиток не застаріває.
type Type struct {
	name    string
	timeout uint64
}

func NewType(name string, timeout uint64) *Type {
	return &Type{name: name, timeout: timeout}
}

func (t *Type) String() string  { return t.name }
func (t *Type) Timeout() uint64 { return t.timeout }

var (
	Start            = NewType("start", 0)
	Player           = NewType("player", 0)
	PlayerSimulation = NewType("player_simulation", 0)
	Forced           = NewType("forced", 0)
	Light            = NewType("light", 0)
	Portal           = NewType("portal", 300)
	PostTeleport     = NewType("post_teleport", 5)
	Unknown          = NewType("unknown", 1)
)

// Ticket - вимога тримати чанк щонайменше на рівні Level.
// Payload має бути порівнюваним значенням.
type Ticket struct {
	Type    *Type
	Level   int
	Payload any

	created uint64
}

func (t *Ticket) same(o *Ticket) bool {
	return t.Type == o.Type && t.Level == o.Level && t.Payload == o.Payload
}

func (t *Ticket) timedOut(now uint64) bool {
	return t.Type.timeout != 0 && now-t.created > t.Type.timeout
}

func (t Ticket) String() string {
	return fmt.Sprintf("Ticket[%v %d (%v)] at %d", t.Type, t.Level, t.Payload, t.created)
}

// ticketSet - квитки одного чанка, відсортовані за рівнем
type ticketSet []*Ticket

func (s ticketSet) min() int {
	if len(s) == 0 {
		return chunk.NotLoaded
	}
	return s[0].Level
}

func (s ticketSet) find(t *Ticket) int {
	for i, v := range s {
		if v.same(t) {
			return i
		}
	}
	return -1
}

func (s ticketSet) insert(t *Ticket) ticketSet {
	i := 0
	for i < len(s) && s[i].Level <= t.Level {
		i++
	}
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = t
	return s
}

func (s ticketSet) remove(i int) ticketSet {
	return append(s[:i], s[i+1:]...)
}
