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
	"errors"
	"fmt"

	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/save"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Access - спільний інтерфейс прото-чанків і живих чанків
type Access interface {
	Pos() Pos
	Status() *Status
	// Column повертає блоки чанка. Змінювати колонку може тільки задача,
	// що зараз працює з цим чанком.
	Column() *level.Chunk
	Unsaved() bool
	SetUnsaved(bool)
}

// Proto - чанк в процесі генерації
type Proto struct {
	pos     Pos
	status  *Status
	column  *level.Chunk
	unsaved bool
}

// NewProto створює прото-чанк на статусі empty
func NewProto(pos Pos, column *level.Chunk) *Proto {
	return &Proto{pos: pos, status: Empty, column: column}
}

// LoadedProto створює прото-чанк зі статусом, прочитаним з диску
func LoadedProto(pos Pos, status *Status, column *level.Chunk) *Proto {
	return &Proto{pos: pos, status: status, column: column}
}

// Advance повертає новий прото-чанк на статусі s з власною копією колонки.
// Результат попередньої сходинки після цього не змінюється.
func (p *Proto) Advance(s *Status) (*Proto, error) {
	col, err := CloneColumn(p.column)
	if err != nil {
		return nil, fmt.Errorf("advance %v to %v: %w", p.pos, s, err)
	}
	return &Proto{pos: p.pos, status: s, column: col, unsaved: true}, nil
}

// CloneColumn робить глибоку копію колонки через формат збереження go-mc
func CloneColumn(col *level.Chunk) (*level.Chunk, error) {
	if col == nil {
		return nil, nil
	}
	sc := save.Chunk{Heightmaps: make(map[string][]uint64)}
	if err := level.ChunkToSave(col, &sc); err != nil {
		return nil, err
	}
	// порожня мапа висот означає що її не було
	maps.DeleteFunc(sc.Heightmaps, func(_ string, v []uint64) bool { return len(v) == 0 })
	out, err := level.ChunkFromSave(&sc)
	if err != nil {
		return nil, err
	}
	// ChunkFromSave міняє місцями WORLD_SURFACE і WORLD_SURFACE_WG
	hm := &out.HeightMaps
	hm.WorldSurface, hm.WorldSurfaceWG = hm.WorldSurfaceWG, hm.WorldSurface
	for i := range out.Sections {
		out.Sections[i].SkyLight = slices.Clone(out.Sections[i].SkyLight)
		out.Sections[i].BlockLight = slices.Clone(out.Sections[i].BlockLight)
	}
	out.BlockEntity = slices.Clone(col.BlockEntity)
	out.Status = col.Status
	return out, nil
}

func (p *Proto) Pos() Pos             { return p.pos }
func (p *Proto) Status() *Status      { return p.status }
func (p *Proto) Column() *level.Chunk { return p.column }
func (p *Proto) Unsaved() bool        { return p.unsaved }
func (p *Proto) SetUnsaved(v bool)    { p.unsaved = v }

// Live - повністю завантажений чанк світу
type Live struct {
	pos        Pos
	column     *level.Chunk
	unsaved    bool
	loaded     bool
	fullStatus func() FullStatus
}

// NewLive матеріалізує живий чанк з останнього прото-чанка
func NewLive(from Access) *Live {
	c := &Live{pos: from.Pos(), column: from.Column(), unsaved: from.Unsaved()}
	if c.column != nil {
		c.column.Status = Full.ChunkStatus()
	}
	return c
}

func (c *Live) Pos() Pos             { return c.pos }
func (c *Live) Status() *Status      { return Full }
func (c *Live) Column() *level.Chunk { return c.column }
func (c *Live) Unsaved() bool        { return c.unsaved }
func (c *Live) SetUnsaved(v bool)    { c.unsaved = v }

// Loaded повідомляє чи чанк зараз бере участь у світі
func (c *Live) Loaded() bool     { return c.loaded }
func (c *Live) SetLoaded(v bool) { c.loaded = v }

// SetFullStatus встановлює джерело фази, зазвичай запис реєстру
func (c *Live) SetFullStatus(fn func() FullStatus) { c.fullStatus = fn }

func (c *Live) FullStatus() FullStatus {
	if c.fullStatus == nil {
		return BorderVisible
	}
	return c.fullStatus()
}

// Imposter підставляється замість прото-чанків після того
// як чанк став живим
type Imposter struct {
	*Live
}

func NewImposter(c *Live) *Imposter { return &Imposter{Live: c} }

// Wrapped повертає живий чанк
func (i *Imposter) Wrapped() *Live { return i.Live }

// AsLive дістає живий чанк з Access, якщо він там є
func AsLive(a Access) (*Live, bool) {
	switch c := a.(type) {
	case *Live:
		return c, true
	case *Imposter:
		return c.Live, true
	}
	return nil, false
}

// ErrUnloaded - заглушка для сходинок, які більше не потрібні
var ErrUnloaded = errors.New("chunk unloaded")

// LoadingFailure - остаточна помилка сходинки в межах епохи
type LoadingFailure struct {
	Pos    Pos
	Status *Status
	Err    error
}

func (f *LoadingFailure) Error() string {
	return fmt.Sprintf("chunk %v failed at %v: %v", f.Pos, f.Status, f.Err)
}

func (f *LoadingFailure) Unwrap() error { return f.Err }

// Result - значення, яке несе ф'ючер сходинки
type Result struct {
	Chunk Access
	Err   error
}

// Unloaded повертає результат-заглушку
func Unloaded() Result { return Result{Err: ErrUnloaded} }

// Failed повертає результат з помилкою
func Failed(err error) Result { return Result{Err: err} }

// Loaded повертає успішний результат
func Loaded(c Access) Result { return Result{Chunk: c} }

func (r Result) OK() bool { return r.Err == nil && r.Chunk != nil }
