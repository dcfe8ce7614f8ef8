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

// Package gen містить генератор за замовчуванням.
// Світ викликає його на кожній сходинці з чанком і його сусідами.
package gen

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/level/block"

	"FlowyChunks/world/chunk"
)

const sectionArea = 16 * 16

// Flat - плаский світ: шари блоків знизу вгору, решта повітря.
// Працює тільки на сходинках empty і noise, інші лише просувають статус.
type Flat struct {
	// Sections - висота колонки в секціях
	Sections int
	// Layers - блок на кожному рівні, починаючи з дна світу
	Layers []block.StateID
}

// NewFlat повертає генератор з шарами бедрок, камінь, земля
func NewFlat() *Flat {
	layers := []block.StateID{block.ToStateID[block.Bedrock{}]}
	for i := 0; i < 60; i++ {
		layers = append(layers, block.ToStateID[block.Stone{}])
	}
	for i := 0; i < 3; i++ {
		layers = append(layers, block.ToStateID[block.Dirt{}])
	}
	return &Flat{Sections: 24, Layers: layers}
}

var errNotProto = errors.New("chunk is not a proto chunk")

// GenerateStage просуває центральний чанк neighbors до status.
// neighbors - квадрат радіуса status.Range() по рядках, центр посередині.
func (f *Flat) GenerateStage(ctx context.Context, status *chunk.Status, neighbors []chunk.Access) (chunk.Access, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return nil, fmt.Errorf("generate %v: no chunks", status)
	}
	center := neighbors[len(neighbors)/2]
	if status == chunk.Empty {
		return chunk.NewProto(center.Pos(), level.EmptyChunk(f.Sections)), nil
	}
	proto, ok := center.(*chunk.Proto)
	if !ok {
		return nil, fmt.Errorf("generate %v at %v: %w", status, center.Pos(), errNotProto)
	}
	next, err := proto.Advance(status)
	if err != nil {
		return nil, err
	}
	if status == chunk.Noise {
		f.fill(next.Column())
	}
	return next, nil
}

func (f *Flat) fill(col *level.Chunk) {
	if col == nil {
		return
	}
	for y, state := range f.Layers {
		sec := y / 16
		if sec >= len(col.Sections) {
			return
		}
		base := (y % 16) * sectionArea
		for i := 0; i < sectionArea; i++ {
			col.Sections[sec].SetBlock(base+i, state)
		}
	}
}

// LoadStage нічого не рахує: плаский світ не зберігає проміжних даних
func (f *Flat) LoadStage(_ context.Context, _ *chunk.Status, c chunk.Access) (chunk.Access, error) {
	return c, nil
}
