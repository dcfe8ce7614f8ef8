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

// Йоу, чат! Тут живе розповсюдження рівнів квитків по сітці чанків.
// Кожен квиток - це джерело з рівнем L у своєму чанку, і в кожному
// кільці Чебишева навколо рівень більшає на 1. Рівень чанка - мінімум
// по всіх джерелах. Рахуємо це як Дейкстру з кошиками (рівні малі цілі),
// а при послабленні джерела спочатку "стираємо" залежну область
// і потім заливаємо її знову з меж.

package ticket

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"FlowyChunks/world/chunk"
)

// levelGraph зберігає обчислені рівні. Відсутній ключ означає maxLevel+1.
type levelGraph struct {
	maxLevel int
	levels   map[int64]int
	// source повертає рівень власного джерела вузла або maxLevel+1
	source func(key int64) int
}

type entry struct {
	key    int64
	level  int
	expand bool // вузол вже має цей рівень, треба лише поширити його далі
}

func newLevelGraph(maxLevel int, source func(int64) int) *levelGraph {
	return &levelGraph{maxLevel: maxLevel, levels: make(map[int64]int), source: source}
}

func (g *levelGraph) sentinel() int { return g.maxLevel + 1 }

func (g *levelGraph) level(key int64) int {
	if l, ok := g.levels[key]; ok {
		return l
	}
	return g.sentinel()
}

func (g *levelGraph) set(key int64, level int) {
	if level > g.maxLevel {
		delete(g.levels, key)
	} else {
		g.levels[key] = level
	}
}

func neighbors(key int64) [8]int64 {
	p := chunk.FromLong(key)
	return [8]int64{
		p.Offset(-1, -1).Long(), p.Offset(0, -1).Long(), p.Offset(1, -1).Long(),
		p.Offset(-1, 0).Long(), p.Offset(1, 0).Long(),
		p.Offset(-1, 1).Long(), p.Offset(0, 1).Long(), p.Offset(1, 1).Long(),
	}
}

// update перераховує рівні після зміни джерел. changed містить ключі,
// чиє джерело змінилось, і рівень джерела до зміни.
// Повертає старі рівні всіх вузлів, яких торкнулось оновлення.
func (g *levelGraph) update(changed map[int64]int) map[int64]int {
	touched := make(map[int64]int)
	touch := func(key int64) {
		if _, ok := touched[key]; !ok {
			touched[key] = g.level(key)
		}
	}
	buckets := make([][]entry, g.maxLevel+1)
	push := func(e entry) {
		if e.level <= g.maxLevel {
			buckets[e.level] = append(buckets[e.level], e)
		}
	}

	// Фаза 1: послаблені джерела стирають область, що від них залежала
	type removal struct {
		key   int64
		level int
	}
	var removals []removal
	for _, key := range sortedKeys(changed) {
		oldSource := changed[key]
		newSource := g.source(key)
		current := g.level(key)
		switch {
		case newSource < current:
			push(entry{key: key, level: newSource})
		case newSource > oldSource && oldSource == current && current <= g.maxLevel:
			touch(key)
			g.set(key, g.sentinel())
			removals = append(removals, removal{key, current})
		}
	}
	for len(removals) > 0 {
		r := removals[0]
		removals = removals[1:]
		if s := g.source(r.key); s <= g.maxLevel {
			push(entry{key: r.key, level: s})
		}
		for _, n := range neighbors(r.key) {
			ln := g.level(n)
			if ln > g.maxLevel {
				continue
			}
			if ln == r.level+1 && g.source(n) != ln {
				// рівень сусіда міг прийти тільки від нас - стираємо і його
				touch(n)
				g.set(n, g.sentinel())
				removals = append(removals, removal{n, ln})
			} else {
				// межа області: звідси заллємо заново
				push(entry{key: n, level: ln, expand: true})
			}
		}
	}

	// Фаза 2: Дейкстра з кошиками від покращених джерел і меж
	for level := 0; level <= g.maxLevel; level++ {
		for i := 0; i < len(buckets[level]); i++ {
			e := buckets[level][i]
			current := g.level(e.key)
			switch {
			case e.expand:
				// межу могла стерти пізніша хвиля цього ж оновлення
				if e.level != current {
					continue
				}
			case e.level < current:
				touch(e.key)
				g.set(e.key, e.level)
			default:
				continue
			}
			next := e.level + 1
			if next > g.maxLevel {
				continue
			}
			for _, n := range neighbors(e.key) {
				if next < g.level(n) {
					buckets[next] = append(buckets[next], entry{key: n, level: next})
				}
			}
		}
		buckets[level] = nil
	}
	return touched
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
