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

// Йоу, чат! Тут ми читаємо збережені дані світу:
// level.dat зі спавном і playerdata/<uuid>.dat з позиціями гравців.
// Обидва файли - NBT, стиснутий GZIP.

package game

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"FlowyChunks/world/chunk"
	"github.com/Tnze/go-mc/save"
)

// readGzip відкриває файл, розпаковує його і віддає read
func readGzip(path string, read func(r io.Reader) error) (errRet error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		err2 := f.Close()
		if errRet == nil && err2 != nil {
			errRet = fmt.Errorf("close %s fail: %w", filepath.Base(path), err2)
		}
	}(f)

	r, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip reader fail: %w", err)
	}
	if err := read(r); err != nil {
		return err
	}
	if err := r.Close(); err != nil {
		return fmt.Errorf("close gzip reader fail: %w", err)
	}
	return nil
}

// readSpawn читає точку спавну з level.dat
func readSpawn(dir string) (chunk.Pos, error) {
	var spawn chunk.Pos
	err := readGzip(filepath.Join(dir, "level.dat"), func(r io.Reader) error {
		lv, err := save.ReadLevel(r)
		if err != nil {
			return fmt.Errorf("read level data fail: %w", err)
		}
		spawn = chunk.PosOf(float64(lv.Data.SpawnX), float64(lv.Data.SpawnZ))
		return nil
	})
	return spawn, err
}

// PlayerProvider читає збережені дані гравців
type PlayerProvider struct {
	dir string // директорія з файлами гравців
}

func NewPlayerProvider(dir string) PlayerProvider {
	return PlayerProvider{dir: dir}
}

// Position повертає збережену позицію гравця.
// Якщо файлу немає, помилка задовольняє errors.Is(err, os.ErrNotExist).
func (p PlayerProvider) Position(id uuid.UUID) (pos [3]float64, err error) {
	err = readGzip(filepath.Join(p.dir, id.String()+".dat"), func(r io.Reader) error {
		data, err := save.ReadPlayerData(r)
		if err != nil {
			return fmt.Errorf("read player data fail: %w", err)
		}
		pos = data.Pos
		return nil
	})
	return
}
