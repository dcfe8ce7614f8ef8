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

// Package chunk містить базові типи системи чанків: координати,
// драбину статусів генерації, рівні квитків і дані самих чанків.
package chunk

import (
	"fmt"
	"math"

	"github.com/Tnze/go-mc/level"
)

// Pos - координати чанка (x, z), така ж форма як level.ChunkPos
type Pos [2]int32

// PosOf повертає позицію чанка, що містить блок (x, z)
func PosOf(x, z float64) Pos {
	return Pos{int32(math.Floor(x)) >> 4, int32(math.Floor(z)) >> 4}
}

func (p Pos) X() int32 { return p[0] }
func (p Pos) Z() int32 { return p[1] }

// Long пакує координати в int64: x в молодших 32 бітах, z в старших.
// Використовується як ключ мап.
func (p Pos) Long() int64 {
	return int64(uint32(p[0])) | int64(uint32(p[1]))<<32
}

// FromLong - обернена операція до Long
func FromLong(v int64) Pos {
	return Pos{int32(uint32(v)), int32(uint32(uint64(v) >> 32))}
}

// Offset повертає позицію, зсунуту на (dx, dz)
func (p Pos) Offset(dx, dz int32) Pos {
	return Pos{p[0] + dx, p[1] + dz}
}

// Chebyshev повертає відстань Чебишева між двома чанками
func (p Pos) Chebyshev(o Pos) int32 {
	return max(abs(p[0]-o[0]), abs(p[1]-o[1]))
}

// Level конвертує позицію в тип go-mc
func (p Pos) Level() level.ChunkPos { return level.ChunkPos(p) }

func (p Pos) String() string {
	return fmt.Sprintf("[%d, %d]", p[0], p[1])
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
