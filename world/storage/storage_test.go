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
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/level/block"
	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/zlib"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"FlowyChunks/world/chunk"
)

func testBackend(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()
	pos := chunk.Pos{-33, 17}

	if _, err := s.Read(ctx, pos); !errors.Is(err, ErrChunkNotExist) {
		t.Fatalf("read of missing chunk: want ErrChunkNotExist, got %v", err)
	}
	want := bytes.Repeat([]byte("flowy"), 1000)
	if err := s.Write(pos, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Read(ctx, pos)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("data mismatch: %d bytes vs %d", len(got), len(want))
	}

	// перезапис
	if err := s.Write(pos, []byte("second")); err != nil {
		t.Fatal(err)
	}
	got, err = s.Read(ctx, pos)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("overwrite: got %q", got)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMemory(t *testing.T) {
	testBackend(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(zaptest.NewLogger(t), filepath.Join(t.TempDir(), "chunks.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	testBackend(t, s)
}

func TestRegion(t *testing.T) {
	s, err := NewRegion(zaptest.NewLogger(t), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testBackend(t, s)
}

func TestRegionReopen(t *testing.T) {
	dir := t.TempDir()
	log := zaptest.NewLogger(t)
	s, err := NewRegion(log, dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(chunk.Pos{5, 5}, []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = NewRegion(log, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Read(context.Background(), chunk.Pos{5, 5})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "persisted" {
		t.Fatalf("got %q", got)
	}
}

func TestDecompress(t *testing.T) {
	got, err := decompress(append([]byte{compressNone}, "raw"...))
	if err != nil || string(got) != "raw" {
		t.Fatalf("uncompressed sector: %q, %v", got, err)
	}
	if _, err := decompress([]byte{42, 1, 2}); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("unknown compression: want ErrInvalidData, got %v", err)
	}
	if _, err := decompress(nil); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("empty sector: want ErrInvalidData, got %v", err)
	}
	if _, err := decompress([]byte{compressZlib, 0xde, 0xad, 0xbe, 0xef}); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("broken zlib stream: want ErrInvalidData, got %v", err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(bytes.Repeat([]byte("chunk"), 100)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	cut := append([]byte{compressZlib}, buf.Bytes()[:buf.Len()/2]...)
	if _, err := decompress(cut); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("truncated sector: want ErrInvalidData, got %v", err)
	}
}

func TestDecodeRejectsBadRecords(t *testing.T) {
	pos := chunk.Pos{1, 2}
	for _, tt := range []struct {
		name string
		rec  columnRecord
	}{
		{"negative height", columnRecord{Height: -1}},
		{"huge height", columnRecord{Height: 1 << 20}},
		{"unknown state", columnRecord{Height: 1, Sections: []sectionRecord{{Y: 0, Palette: []int32{-5}}}}},
	} {
		tt.rec.Format = formatName
		tt.rec.Status = "minecraft:noise"
		tt.rec.XPos, tt.rec.ZPos = pos[0], pos[1]
		var buf bytes.Buffer
		if err := nbt.NewEncoder(&buf).Encode(tt.rec, ""); err != nil {
			t.Fatal(err)
		}
		if _, err := Decode(pos, buf.Bytes()); !errors.Is(err, ErrInvalidData) {
			t.Errorf("%s: want ErrInvalidData, got %v", tt.name, err)
		}
	}
}

func TestLimited(t *testing.T) {
	mem := NewMemory()
	_ = mem.Write(chunk.Pos{0, 0}, []byte{1})
	s := WithLimiter(mem, rate.NewLimiter(rate.Every(time.Hour), 1))

	if _, err := s.Read(context.Background(), chunk.Pos{0, 0}); err != nil {
		t.Fatal(err)
	}
	// другий токен буде лише через годину
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.Read(ctx, chunk.Pos{0, 0}); !errors.Is(err, ErrReachRateLimit) {
		t.Fatalf("want ErrReachRateLimit, got %v", err)
	}
}

func TestCodec(t *testing.T) {
	pos := chunk.Pos{3, -4}
	col := level.EmptyChunk(4)
	stone := block.ToStateID[block.Stone{}]
	dirt := block.ToStateID[block.Dirt{}]
	for i := 0; i < sectionSize; i++ {
		col.Sections[0].SetBlock(i, stone)
	}
	col.Sections[1].SetBlock(7, dirt)

	proto, err := chunk.NewProto(pos, col).Advance(chunk.Noise)
	if err != nil {
		t.Fatal(err)
	}
	data, err := Encode(proto)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(pos, data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status() != chunk.Noise {
		t.Errorf("status: want noise, got %v", got.Status())
	}
	if got.Unsaved() {
		t.Error("decoded chunk must be saved")
	}
	c := got.Column()
	if len(c.Sections) != 4 {
		t.Fatalf("want 4 sections, got %d", len(c.Sections))
	}
	for _, i := range []int{0, 100, sectionSize - 1} {
		if s := c.Sections[0].GetBlock(i); s != stone {
			t.Errorf("section 0 block %d: got %d", i, s)
		}
	}
	if s := c.Sections[1].GetBlock(7); s != dirt {
		t.Errorf("section 1 block 7: got %d", s)
	}
	if s := c.Sections[1].GetBlock(8); s != air {
		t.Errorf("section 1 block 8: got %d", s)
	}
	if s := c.Sections[3].GetBlock(0); s != air {
		t.Errorf("section 3 block 0: got %d", s)
	}

	if _, err := Decode(chunk.Pos{0, 0}, data); !errors.Is(err, ErrInvalidData) {
		t.Errorf("wrong position: want ErrInvalidData, got %v", err)
	}
	if _, err := Decode(pos, []byte{1, 2, 3}); !errors.Is(err, ErrInvalidData) {
		t.Errorf("garbage: want ErrInvalidData, got %v", err)
	}
}
