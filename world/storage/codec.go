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

package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/level/block"
	"github.com/Tnze/go-mc/nbt"
	"github.com/Tnze/go-mc/save"

	"FlowyChunks/world/chunk"
)

const (
	formatName  = "flowy:palette"
	dataVersion = 3337 // 1.19.4
	sectionSize = 16 * 16 * 16
	// Y секції - int8, вище не записати
	maxSections = 128
)

// ErrInvalidData означає що в даних немає статусу або вони пошкоджені
var ErrInvalidData = errors.New("invalid chunk data")

// columnRecord - NBT представлення чанка
type columnRecord struct {
	Format      string          `nbt:"FlowyFormat"`
	DataVersion int32           `nbt:"DataVersion"`
	XPos        int32           `nbt:"xPos"`
	ZPos        int32           `nbt:"zPos"`
	Status      string          `nbt:"Status"`
	Height      int32           `nbt:"Height"`
	Sections    []sectionRecord `nbt:"sections"`
}

// sectionRecord - секція 16x16x16. Палітра зберігає глобальні id станів блоків,
// Indices - індекс в палітрі для кожного блоку. Секції з одним станом
// не мають Indices.
type sectionRecord struct {
	Y       int8    `nbt:"Y"`
	Palette []int32 `nbt:"palette"`
	Indices []byte  `nbt:"indices"`
}

// Encode серіалізує чанк в NBT
func Encode(c chunk.Access) ([]byte, error) {
	pos := c.Pos()
	rec := columnRecord{
		Format:      formatName,
		DataVersion: dataVersion,
		XPos:        pos[0],
		ZPos:        pos[1],
		Status:      "minecraft:" + c.Status().Name(),
	}
	if col := c.Column(); col != nil {
		rec.Height = int32(len(col.Sections))
		for i := range col.Sections {
			sec, err := encodeSection(&col.Sections[i], int8(i))
			if err != nil {
				return nil, err
			}
			if sec != nil {
				rec.Sections = append(rec.Sections, *sec)
			}
		}
	}
	var buf bytes.Buffer
	if err := nbt.NewEncoder(&buf).Encode(rec, ""); err != nil {
		return nil, fmt.Errorf("encode chunk fail: %w", err)
	}
	return buf.Bytes(), nil
}

var air = block.ToStateID[block.Air{}]

func encodeSection(s *level.Section, y int8) (*sectionRecord, error) {
	index := make(map[block.StateID]byte)
	rec := sectionRecord{Y: y}
	indices := make([]byte, sectionSize)
	for i := 0; i < sectionSize; i++ {
		state := s.GetBlock(i)
		idx, ok := index[state]
		if !ok {
			if len(rec.Palette) == 256 {
				return nil, fmt.Errorf("section %d has more than 256 block states", y)
			}
			idx = byte(len(rec.Palette))
			index[state] = idx
			rec.Palette = append(rec.Palette, int32(state))
		}
		indices[i] = idx
	}
	if len(rec.Palette) == 1 {
		if block.StateID(rec.Palette[0]) == air {
			return nil, nil
		}
		return &rec, nil
	}
	rec.Indices = indices
	return &rec, nil
}

// Decode розбирає дані, записані Encode, або ванільний формат чанка
func Decode(pos chunk.Pos, data []byte) (*chunk.Proto, error) {
	var rec columnRecord
	if err := nbt.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if rec.Format != formatName {
		return decodeVanilla(pos, data)
	}
	status, ok := chunk.ByName(rec.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidData, rec.Status)
	}
	if rec.XPos != pos[0] || rec.ZPos != pos[1] {
		return nil, fmt.Errorf("%w: stored at [%d, %d]", ErrInvalidData, rec.XPos, rec.ZPos)
	}
	if rec.Height < 0 || rec.Height > maxSections {
		return nil, fmt.Errorf("%w: height %d", ErrInvalidData, rec.Height)
	}
	col := level.EmptyChunk(int(rec.Height))
	for _, sec := range rec.Sections {
		if int(sec.Y) < 0 || int(sec.Y) >= len(col.Sections) || len(sec.Palette) == 0 ||
			(len(sec.Indices) != 0 && len(sec.Indices) != sectionSize) {
			return nil, fmt.Errorf("%w: bad section %d", ErrInvalidData, sec.Y)
		}
		for _, state := range sec.Palette {
			if state < 0 || int(state) >= len(block.StateList) {
				return nil, fmt.Errorf("%w: unknown block state %d", ErrInvalidData, state)
			}
		}
		s := &col.Sections[sec.Y]
		for i := 0; i < sectionSize; i++ {
			idx := 0
			if len(sec.Indices) != 0 {
				idx = int(sec.Indices[i])
			}
			if idx >= len(sec.Palette) {
				return nil, fmt.Errorf("%w: palette index out of range", ErrInvalidData)
			}
			s.SetBlock(i, block.StateID(sec.Palette[idx]))
		}
	}
	col.Status = status.ChunkStatus()
	return chunk.LoadedProto(pos, status, col), nil
}

// decodeVanilla читає чанки, збережені звичайним сервером
func decodeVanilla(pos chunk.Pos, data []byte) (_ *chunk.Proto, err error) {
	// go-mc панікує на мапах висот невірної довжини
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidData, r)
		}
	}()
	var sc save.Chunk
	if err := nbt.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	status, ok := chunk.ByName(sc.Status)
	if !ok {
		return nil, fmt.Errorf("%w: missing status", ErrInvalidData)
	}
	col, err := level.ChunkFromSave(&sc)
	if err != nil {
		return nil, fmt.Errorf("%w: load chunk data fail: %v", ErrInvalidData, err)
	}
	return chunk.LoadedProto(pos, status, col), nil
}
