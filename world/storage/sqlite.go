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
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"FlowyChunks/world/chunk"
)

// SQLite зберігає чанки однією таблицею, дані стиснені zstd.
type SQLite struct {
	log *zap.Logger
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func OpenSQLite(log *zap.Logger, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init pragmas fail: %w", err)
		}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		x INTEGER NOT NULL,
		z INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (x, z)
	);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema fail: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{log: log, db: db, enc: enc, dec: dec}, nil
}

func (s *SQLite) Read(ctx context.Context, pos chunk.Pos) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM chunks WHERE x = ? AND z = ?`, pos[0], pos[1]).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChunkNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("query chunk %v fail: %w", pos, err)
	}
	data, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return data, nil
}

func (s *SQLite) Write(pos chunk.Pos, data []byte) error {
	blob := s.enc.EncodeAll(data, nil)
	_, err := s.db.Exec(`INSERT INTO chunks (x, z, data) VALUES (?, ?, ?)
		ON CONFLICT(x, z) DO UPDATE SET data = excluded.data`, pos[0], pos[1], blob)
	if err != nil {
		return fmt.Errorf("store chunk %v fail: %w", pos, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	s.dec.Close()
	err := multierr.Combine(s.enc.Close(), s.db.Close())
	s.log.Debug("Chunk database closed")
	return err
}
