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

// Йоу, чат! Тут чанки зберігаються у файлах регіонів (.mca).
// Кожен регіон тримає 32x32 чанки, кожен чанк лежить у своєму секторі:
// перший байт - тип стиснення, далі стиснуті NBT дані.

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Tnze/go-mc/save/region"

	"FlowyChunks/world/chunk"
)

// Типи стиснення секторів
const (
	compressGzip byte = 1
	compressZlib byte = 2
	compressNone byte = 3
)

// Region зберігає чанки у файлах регіонів в директорії dir
type Region struct {
	log *zap.Logger
	dir string

	mu      sync.Mutex
	regions map[[2]int]*region.Region
}

// NewRegion створює сховище. Директорія створюється, якщо її немає.
func NewRegion(log *zap.Logger, dir string) (*Region, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create region dir fail: %w", err)
	}
	return &Region{log: log, dir: dir, regions: make(map[[2]int]*region.Region)}, nil
}

// Read читає сектор чанка і розпаковує його
func (p *Region) Read(_ context.Context, pos chunk.Pos) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := p.getRegion(region.At(int(pos[0]), int(pos[1])))
	if err != nil {
		return nil, fmt.Errorf("open region fail: %w", err)
	}
	x, z := region.In(int(pos[0]), int(pos[1]))
	if !r.ExistSector(x, z) {
		return nil, ErrChunkNotExist
	}
	data, err := r.ReadSector(x, z)
	if err != nil {
		return nil, fmt.Errorf("read sector fail: %w", err)
	}
	return decompress(data)
}

// Write стискає дані zlib і записує їх у сектор
func (p *Region) Write(pos chunk.Pos, data []byte) error {
	var buf bytes.Buffer
	buf.WriteByte(compressZlib)
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("compress chunk fail: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compress chunk fail: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	r, err := p.getRegion(region.At(int(pos[0]), int(pos[1])))
	if err != nil {
		return fmt.Errorf("open region fail: %w", err)
	}
	x, z := region.In(int(pos[0]), int(pos[1]))
	if err := r.WriteSector(x, z, buf.Bytes()); err != nil {
		return fmt.Errorf("write sector fail: %w", err)
	}
	return nil
}

// getRegion повертає відкритий регіон, відкриваючи або створюючи файл.
// Викликається під p.mu.
func (p *Region) getRegion(rx, rz int) (*region.Region, error) {
	if r, ok := p.regions[[2]int{rx, rz}]; ok {
		return r, nil
	}
	path := filepath.Join(p.dir, fmt.Sprintf("r.%d.%d.mca", rx, rz))
	r, err := region.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		r, err = region.Create(path)
	}
	if err != nil {
		return nil, err
	}
	p.regions[[2]int{rx, rz}] = r
	return r, nil
}

// Close закриває всі відкриті регіони
func (p *Region) Close() (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, r := range p.regions {
		if err2 := r.Close(); err2 != nil {
			err = multierr.Append(err, fmt.Errorf("close region %v fail: %w", key, err2))
		}
		delete(p.regions, key)
	}
	p.log.Debug("Regions closed")
	return
}

func decompress(data []byte) (out []byte, errRet error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty sector", ErrInvalidData)
	}
	var r io.ReadCloser
	var err error
	switch data[0] {
	case compressGzip:
		r, err = gzip.NewReader(bytes.NewReader(data[1:]))
	case compressZlib:
		r, err = zlib.NewReader(bytes.NewReader(data[1:]))
	case compressNone:
		return data[1:], nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidData, data[0])
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open decompressor fail: %v", ErrInvalidData, err)
	}
	defer func(r io.ReadCloser) {
		err2 := r.Close()
		if errRet == nil && err2 != nil {
			errRet = fmt.Errorf("%w: close decompressor fail: %v", ErrInvalidData, err2)
		}
	}(r)
	out, err = io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress fail: %v", ErrInvalidData, err)
	}
	return out, nil
}
