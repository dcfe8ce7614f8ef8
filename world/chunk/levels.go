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

package chunk

// Рівні квитків. Менший рівень означає "більш завантажений" чанк.
const (
	EntityTickingLevel = 31
	BlockTickingLevel  = 32
	FullLevel          = 33
)

var (
	// MaxLevel - найбільший рівень, на якому чанк ще тримається в пам'яті
	MaxLevel = FullLevel + MaxDistance()
	// NotLoaded - сентинел "не завантажено"
	NotLoaded = MaxLevel + 1
)

// FullStatus - грубі фази життя чанка над генерацією
type FullStatus byte

const (
	Inaccessible FullStatus = iota
	BorderVisible
	BlockTicking
	EntityTicking
)

func (f FullStatus) String() string {
	switch f {
	case BorderVisible:
		return "border"
	case BlockTicking:
		return "ticking"
	case EntityTicking:
		return "entity_ticking"
	}
	return "inaccessible"
}

// IsOrAfter перевіряє чи фаза f не нижче за other
func (f FullStatus) IsOrAfter(other FullStatus) bool { return f >= other }

// ByStatus повертає рівень квитка, достатній щоб чанк дійшов до статусу s
func ByStatus(s *Status) int { return FullLevel + Distance(s) }

// ByFullStatus повертає рівень для фази
func ByFullStatus(f FullStatus) int {
	switch f {
	case EntityTicking:
		return EntityTickingLevel
	case BlockTicking:
		return BlockTickingLevel
	case BorderVisible:
		return FullLevel
	}
	return MaxLevel
}

// GenerationStatus повертає найвищий статус, до якого дозволено генерувати
// чанк на цьому рівні, або nil якщо чанк не завантажений.
func GenerationStatus(level int) *Status {
	if level <= FullLevel {
		return Full
	}
	return AroundFull(level - FullLevel)
}

// FullStatusAt повертає фазу для рівня
func FullStatusAt(level int) FullStatus {
	switch {
	case level <= EntityTickingLevel:
		return EntityTicking
	case level <= BlockTickingLevel:
		return BlockTicking
	case level <= FullLevel:
		return BorderVisible
	}
	return Inaccessible
}

// IsLoaded повідомляє чи чанк на цьому рівні має бути в пам'яті
func IsLoaded(level int) bool { return level <= MaxLevel }

// ClampLevel обмежує рівень відрізком [0, NotLoaded]
func ClampLevel(level int) int {
	return min(max(level, 0), NotLoaded)
}
