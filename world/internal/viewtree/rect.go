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

// Йоу, чат! Прямокутник з чанків, включно з обома межами.
// Зона видимості гравця - це квадрат навколо його чанка,
// і саме такі прямокутники лежать у дереві.

package viewtree

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Rect - прямокутник на сітці, Lower і Upper входять в нього
type Rect[I constraints.Signed] struct {
	Lower, Upper [2]I
}

// Square повертає квадрат радіуса r навколо center
func Square[I constraints.Signed](center [2]I, r I) Rect[I] {
	return Rect[I]{
		Lower: [2]I{center[0] - r, center[1] - r},
		Upper: [2]I{center[0] + r, center[1] + r},
	}
}

// Contains перевіряє чи точка лежить всередині
func (r Rect[I]) Contains(p [2]I) bool {
	return r.Lower[0] <= p[0] && p[0] <= r.Upper[0] &&
		r.Lower[1] <= p[1] && p[1] <= r.Upper[1]
}

// Touch перевіряє чи прямокутники мають спільні клітинки
func (r Rect[I]) Touch(o Rect[I]) bool {
	return r.Lower[0] <= o.Upper[0] && o.Lower[0] <= r.Upper[0] &&
		r.Lower[1] <= o.Upper[1] && o.Lower[1] <= r.Upper[1]
}

// Union повертає найменший прямокутник, що містить обидва
func (r Rect[I]) Union(o Rect[I]) Rect[I] {
	return Rect[I]{
		Lower: [2]I{min(r.Lower[0], o.Lower[0]), min(r.Lower[1], o.Lower[1])},
		Upper: [2]I{max(r.Upper[0], o.Upper[0]), max(r.Upper[1], o.Upper[1])},
	}
}

// Perimeter - вартість вузла при побудові дерева
func (r Rect[I]) Perimeter() int64 {
	return 2 * (int64(r.Upper[0]-r.Lower[0]+1) + int64(r.Upper[1]-r.Lower[1]+1))
}

// Each обходить усі клітинки прямокутника
func (r Rect[I]) Each(fn func(p [2]I)) {
	for x := r.Lower[0]; x <= r.Upper[0]; x++ {
		for z := r.Lower[1]; z <= r.Upper[1]; z++ {
			fn([2]I{x, z})
		}
	}
}

func (r Rect[I]) String() string {
	return fmt.Sprintf("[%d..%d, %d..%d]", r.Lower[0], r.Upper[0], r.Lower[1], r.Upper[1])
}
