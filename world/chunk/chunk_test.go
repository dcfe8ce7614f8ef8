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

import (
	"math"
	"testing"

	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/level/block"
)

func TestPosLong(t *testing.T) {
	for _, pos := range []Pos{
		{0, 0}, {1, -1}, {-1, 1}, {30000000, -30000000},
		{math.MaxInt32, math.MinInt32}, {math.MinInt32, math.MaxInt32},
	} {
		if got := FromLong(pos.Long()); got != pos {
			t.Errorf("FromLong(%v.Long()) = %v", pos, got)
		}
	}
	if (Pos{1, 0}).Long() == (Pos{0, 1}).Long() {
		t.Error("different positions packed to the same key")
	}
}

func TestChebyshev(t *testing.T) {
	if d := (Pos{0, 0}).Chebyshev(Pos{3, -5}); d != 5 {
		t.Errorf("distance = %d, want 5", d)
	}
}

func TestLadder(t *testing.T) {
	if Empty.Parent() != Empty {
		t.Error("empty must be its own parent")
	}
	for i, s := range Statuses() {
		if s.Index() != i {
			t.Errorf("%v has index %d, want %d", s, s.Index(), i)
		}
		if i > 0 && s.Parent() != Statuses()[i-1] {
			t.Errorf("parent of %v is %v", s, s.Parent())
		}
		if got, ok := ByName("minecraft:" + s.Name()); !ok || got != s {
			t.Errorf("ByName(%q) = %v, %v", s.Name(), got, ok)
		}
	}
	if Full.Kind() != KindLevel || Spawn.Kind() != KindProto {
		t.Error("only full is a level chunk")
	}
}

func TestDistances(t *testing.T) {
	want := map[*Status]int{
		Full: 0, Spawn: 1, Light: 1, InitializeLight: 2, Features: 2,
		Carvers: 3, StructureReferences: 3, StructureStarts: 4, Empty: 4,
	}
	for s, d := range want {
		if got := Distance(s); got != d {
			t.Errorf("Distance(%v) = %d, want %d", s, got, d)
		}
	}
	if MaxLevel != 37 || NotLoaded != 38 {
		t.Errorf("MaxLevel = %d, NotLoaded = %d", MaxLevel, NotLoaded)
	}
}

func TestGenerationStatus(t *testing.T) {
	for _, tt := range []struct {
		level int
		want  *Status
	}{
		{0, Full},
		{EntityTickingLevel, Full},
		{FullLevel, Full},
		{FullLevel + 1, Spawn},
		{FullLevel + 2, InitializeLight},
		{FullLevel + 3, Carvers},
		{MaxLevel, StructureStarts},
		{NotLoaded, nil},
	} {
		if got := GenerationStatus(tt.level); got != tt.want {
			t.Errorf("GenerationStatus(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
	// every status must be reachable at the level that asks for it
	for _, s := range Statuses() {
		if !GenerationStatus(ByStatus(s)).IsOrAfter(s) {
			t.Errorf("level %d does not reach %v", ByStatus(s), s)
		}
	}
}

func TestFullStatusAt(t *testing.T) {
	for _, tt := range []struct {
		level int
		want  FullStatus
	}{
		{30, EntityTicking},
		{31, EntityTicking},
		{32, BlockTicking},
		{33, BorderVisible},
		{34, Inaccessible},
	} {
		if got := FullStatusAt(tt.level); got != tt.want {
			t.Errorf("FullStatusAt(%d) = %v, want %v", tt.level, got, tt.want)
		}
		if ByFullStatus(tt.want) < tt.level && tt.want != Inaccessible {
			t.Errorf("ByFullStatus(%v) = %d is below %d", tt.want, ByFullStatus(tt.want), tt.level)
		}
	}
}

func TestImposter(t *testing.T) {
	live := NewLive(NewProto(Pos{1, 2}, nil))
	imp := NewImposter(live)
	if got, ok := AsLive(imp); !ok || got != live {
		t.Error("imposter must unwrap to the live chunk")
	}
	if _, ok := AsLive(NewProto(Pos{}, nil)); ok {
		t.Error("proto chunk is not live")
	}
	if imp.Status() != Full || imp.Pos() != (Pos{1, 2}) {
		t.Errorf("imposter reports %v at %v", imp.Status(), imp.Pos())
	}
}

func TestAdvanceCopiesColumn(t *testing.T) {
	stone := block.ToStateID[block.Stone{}]
	col := level.EmptyChunk(4)
	col.Sections[1].SetBlock(10, stone)
	col.Sections[0].SkyLight = make([]byte, 2048)
	col.HeightMaps.WorldSurface.Set(3, 42)

	p := NewProto(Pos{2, 2}, col)
	next, err := p.Advance(Noise)
	if err != nil {
		t.Fatal(err)
	}
	if next.Status() != Noise || !next.Unsaved() {
		t.Fatalf("advanced to %v, unsaved %v", next.Status(), next.Unsaved())
	}
	cp := next.Column()
	if cp == col {
		t.Fatal("advanced chunk shares the column")
	}
	if got := cp.Sections[1].GetBlock(10); got != stone {
		t.Errorf("copied block = %d", got)
	}
	if got := cp.HeightMaps.WorldSurface.Get(3); got != 42 {
		t.Errorf("copied height = %d", got)
	}

	cp.Sections[1].SetBlock(10, block.ToStateID[block.Air{}])
	cp.Sections[2].SetBlock(0, stone)
	cp.Sections[0].SkyLight[0] = 0xff
	cp.HeightMaps.WorldSurface.Set(3, 7)
	if got := col.Sections[1].GetBlock(10); got != stone {
		t.Error("write to the copy changed the source block")
	}
	if col.Sections[2].BlockCount != 0 {
		t.Error("write to the copy changed the source section")
	}
	if col.Sections[0].SkyLight[0] != 0 {
		t.Error("light is shared")
	}
	if got := col.HeightMaps.WorldSurface.Get(3); got != 42 {
		t.Errorf("height map is shared: %d", got)
	}

	if c, err := CloneColumn(nil); c != nil || err != nil {
		t.Errorf("CloneColumn(nil) = %v, %v", c, err)
	}
}
