package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"FlowyChunks/world/chunk"
	"github.com/Tnze/go-mc/nbt"
	"github.com/Tnze/go-mc/save"
)

// createLevel пише level.dat зі спавном в центрі чанка center,
// якщо файлу ще немає
func createLevel(dir string, center chunk.Pos) (errRet error) {
	path := filepath.Join(dir, "level.dat")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	level := &save.Level{
		Data: save.LevelData{
			Version: struct {
				ID       int32 `nbt:"Id"`
				Name     string
				Series   string
				Snapshot byte
			}{
				ID:     2975,
				Name:   "1.19.4",
				Series: "main",
			},
			LevelName:      filepath.Base(dir),
			GameType:       1, // Creative
			LastPlayed:     time.Now().UnixMilli(),
			SpawnX:         center.X()*16 + 8,
			SpawnY:         100,
			SpawnZ:         center.Z()*16 + 8,
			Difficulty:     2, // Normal
			GameRules:      make(map[string]string),
			DataVersion:    3337,
			Initialized:    true,
			StorageVersion: 19133,
		},
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); errRet == nil {
			errRet = err
		}
	}()

	gw := gzip.NewWriter(f)
	if err := nbt.NewEncoder(gw).Encode(level, ""); err != nil {
		return err
	}
	return gw.Close()
}
