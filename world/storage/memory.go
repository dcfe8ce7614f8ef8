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
	"context"
	"sync"

	"golang.org/x/exp/slices"

	"FlowyChunks/world/chunk"
)

// Memory тримає чанки у мапі. Для тестів і тимчасових світів.
type Memory struct {
	mu     sync.RWMutex
	chunks map[chunk.Pos][]byte
	writes int
}

func NewMemory() *Memory {
	return &Memory{chunks: make(map[chunk.Pos][]byte)}
}

func (m *Memory) Read(_ context.Context, pos chunk.Pos) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.chunks[pos]
	if !ok {
		return nil, ErrChunkNotExist
	}
	return slices.Clone(data), nil
}

func (m *Memory) Write(pos chunk.Pos, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[pos] = slices.Clone(data)
	m.writes++
	return nil
}

// Writes повертає кількість записів з моменту створення
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Has перевіряє, чи є збережений чанк
func (m *Memory) Has(pos chunk.Pos) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.chunks[pos]
	return ok
}

func (m *Memory) Close() error { return nil }
