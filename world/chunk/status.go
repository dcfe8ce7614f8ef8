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

// Йоу, чат! Тут описана драбина статусів генерації чанка.
// Кожен чанк проходить ці сходинки по порядку, від empty до full.
// Щоб піднятись на сходинку S, всі сусіди в радіусі Range(S)
// мають бути вже на сходинці Parent(S) або вище.

package chunk

import (
	"strings"

	"github.com/Tnze/go-mc/level"
)

// Kind розрізняє прото-чанки та живі чанки світу
type Kind byte

const (
	KindProto Kind = iota
	KindLevel
)

// Status - одна сходинка драбини
type Status struct {
	index  int
	name   string
	radius int
	kind   Kind
	// loadDeps означає що навіть завантаження з диску потребує сусідів
	loadDeps bool
}

var (
	Empty               = &Status{index: 0, name: "empty"}
	StructureStarts     = &Status{index: 1, name: "structure_starts"}
	StructureReferences = &Status{index: 2, name: "structure_references", radius: 1}
	Biomes              = &Status{index: 3, name: "biomes"}
	Noise               = &Status{index: 4, name: "noise"}
	Surface             = &Status{index: 5, name: "surface"}
	Carvers             = &Status{index: 6, name: "carvers"}
	Features            = &Status{index: 7, name: "features", radius: 1}
	InitializeLight     = &Status{index: 8, name: "initialize_light"}
	Light               = &Status{index: 9, name: "light", radius: 1, loadDeps: true}
	Spawn               = &Status{index: 10, name: "spawn"}
	Full                = &Status{index: 11, name: "full", radius: 1, kind: KindLevel}
)

var statuses = []*Status{
	Empty, StructureStarts, StructureReferences, Biomes, Noise, Surface,
	Carvers, Features, InitializeLight, Light, Spawn, Full,
}

// Statuses повертає всю драбину по порядку
func Statuses() []*Status { return statuses }

// Count - кількість сходинок
func Count() int { return len(statuses) }

// ByIndex повертає статус за індексом
func ByIndex(i int) *Status { return statuses[i] }

// ByName шукає статус за назвою, префікс "minecraft:" ігнорується
func ByName(name string) (*Status, bool) {
	name = strings.TrimPrefix(name, "minecraft:")
	for _, s := range statuses {
		if s.name == name {
			return s, true
		}
	}
	return nil, false
}

func (s *Status) Index() int  { return s.index }
func (s *Status) Name() string { return s.name }

// Range - радіус сусідів, які мають бути на Parent() перед переходом на цей статус
func (s *Status) Range() int { return s.radius }
func (s *Status) Kind() Kind { return s.kind }

// HasLoadDependencies повідомляє чи потрібні сусіди навіть для завантаження з диску
func (s *Status) HasLoadDependencies() bool { return s.loadDeps }

// Parent повертає попередню сходинку (empty для empty)
func (s *Status) Parent() *Status {
	if s.index == 0 {
		return s
	}
	return statuses[s.index-1]
}

// IsOrAfter перевіряє чи s не нижче за other
func (s *Status) IsOrAfter(other *Status) bool { return s.index >= other.index }

// IsOrBefore перевіряє чи s не вище за other
func (s *Status) IsOrBefore(other *Status) bool { return s.index <= other.index }

// ChunkStatus конвертує статус у представлення go-mc
func (s *Status) ChunkStatus() level.ChunkStatus { return level.ChunkStatus("minecraft:" + s.name) }

func (s *Status) String() string { return s.name }

// distances[i] - на якій відстані від full чанка ще потрібен статус i,
// aroundFull[d] - найвищий статус, який потрібен на відстані d
var distances, aroundFull = computeReach()

func computeReach() ([]int, []*Status) {
	dist := make([]int, len(statuses))
	for i := len(statuses) - 1; i > 0; i-- {
		dist[i-1] = max(dist[i-1], dist[i]+statuses[i].radius)
	}
	around := make([]*Status, dist[0]+1)
	for d := range around {
		for i := len(statuses) - 1; i >= 0; i-- {
			if dist[i] >= d {
				around[d] = statuses[i]
				break
			}
		}
	}
	return dist, around
}

// Distance повертає кількість кілець навколо full чанка, на яких ще потрібен статус s
func Distance(s *Status) int { return distances[s.index] }

// MaxDistance - відстань для empty, найбільша на драбині
func MaxDistance() int { return distances[0] }

// AroundFull повертає статус, потрібний на відстані d від full чанка.
// Для d поза драбиною повертає nil.
func AroundFull(d int) *Status {
	if d < 0 {
		return Full
	}
	if d >= len(aroundFull) {
		return nil
	}
	return aroundFull[d]
}
