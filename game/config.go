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

// Йоу, чат! Зараз розберемо конфігурацію нашого сервера!
// Тут зберігаються всі налаштування які можна змінити.
// Конфіг читається з config.toml, а якщо хочеться - з config.yaml.

package game

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"FlowyChunks/world"
)

// Config - головна структура з налаштуваннями сервера
type Config struct {
	// Назва папки де зберігається світ
	LevelName string `toml:"level-name" yaml:"level-name"`

	// На яку відстань (в чанках) гравці бачать світ
	ViewDistance int `toml:"view-distance" yaml:"view-distance"`
	// В якому радіусі навколо гравців світ тікає
	SimulationDistance int `toml:"simulation-distance" yaml:"simulation-distance"`

	// Скільки воркерів генерують чанки. 0 - все на головному потоці.
	Workers  int      `toml:"workers" yaml:"workers"`
	TickRate duration `toml:"tick-rate" yaml:"tick-rate"`

	// Де лежать чанки: region, sqlite або memory
	Storage string `toml:"storage" yaml:"storage"`

	UnloadBudget     int      `toml:"unload-budget" yaml:"unload-budget"`
	UnloadBacklog    int      `toml:"unload-backlog" yaml:"unload-backlog"`
	AutosavePerTick  int      `toml:"autosave-per-tick" yaml:"autosave-per-tick"`
	AutosaveCooldown duration `toml:"autosave-cooldown" yaml:"autosave-cooldown"`

	// ChunkLoadingLimiter - як швидко можна читати чанки з диску
	ChunkLoadingLimiter Limiter `toml:"chunk-loading-limiter" yaml:"chunk-loading-limiter"`
	// PlayerChunkLoadingLimiter - як швидко можна надсилати чанки одному гравцю
	PlayerChunkLoadingLimiter Limiter `toml:"player-chunk-loading-limiter" yaml:"player-chunk-loading-limiter"`

	// Радіус навколо спавну, який завжди завантажений
	SpawnRadius int `toml:"spawn-radius" yaml:"spawn-radius"`

	Walkers []Walker `toml:"walkers" yaml:"walkers"`
}

// Walker - гравець без клієнта, що ходить по прямій.
// Потрібен, щоб навантажити систему чанків без мережі.
type Walker struct {
	Name string `toml:"name" yaml:"name"`
	// UUID шукається в playerdata, звідти береться стартова позиція
	UUID string `toml:"uuid" yaml:"uuid"`
	// Start використовується, якщо даних гравця немає
	Start [3]float64 `toml:"start" yaml:"start"`
	// Velocity - блоків за тік по x і z
	Velocity     [2]float64 `toml:"velocity" yaml:"velocity"`
	ViewDistance int        `toml:"view-distance" yaml:"view-distance"`
}

// Storage backends
const (
	StorageRegion = "region"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

func (c Config) withDefaults() Config {
	if c.LevelName == "" {
		c.LevelName = "world"
	}
	if c.Storage == "" {
		c.Storage = StorageRegion
	}
	if c.SpawnRadius < 0 {
		c.SpawnRadius = 0
	}
	return c
}

// WorldConfig перекладає налаштування сервера в налаштування світу.
// Нулі там підмінює сам світ.
func (c Config) WorldConfig() world.Config {
	return world.Config{
		ViewDistance:       c.ViewDistance,
		SimulationDistance: c.SimulationDistance,
		Workers:            c.Workers,
		TickRate:           c.TickRate.Duration,
		UnloadBudget:       c.UnloadBudget,
		UnloadBacklog:      c.UnloadBacklog,
		AutosavePerTick:    c.AutosavePerTick,
		AutosaveCooldown:   c.AutosaveCooldown.Duration,
	}
}

func (c Config) validate() error {
	switch c.Storage {
	case StorageRegion, StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	for i, w := range c.Walkers {
		if w.UUID == "" {
			continue
		}
		if _, err := uuid.Parse(w.UUID); err != nil {
			return fmt.Errorf("walker %d: %w", i, err)
		}
	}
	return nil
}

// ReadConfig читає конфіг з файлу. Формат вибирається за розширенням.
// Якщо знайдемо невідомі налаштування - повернемо помилку.
func ReadConfig(path string) (Config, error) {
	var (
		c   Config
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = readYAML(path, &c)
	default:
		err = readTOML(path, &c)
	}
	if err != nil {
		return Config{}, err
	}
	c = c.withDefaults()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func readTOML(path string, c *Config) error {
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		var err errUnknownConfig
		for _, key := range undecoded {
			err = append(err, key.String())
		}
		return err
	}
	return nil
}

func readYAML(path string, c *Config) (errRet error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		err2 := f.Close()
		if errRet == nil && err2 != nil {
			errRet = fmt.Errorf("close config fail: %w", err2)
		}
	}(f)

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// errUnknownConfig - це список невідомих налаштувань
type errUnknownConfig []string

func (e errUnknownConfig) Error() string {
	return "unknown config keys: [" + strings.Join(e, ", ") + "]"
}

// Limiter - структура для обмеження частоти дій
// Наприклад: не більше 100 чанків кожні 5 секунд
type Limiter struct {
	// Як часто можна виконувати дію
	Every duration `toml:"every" yaml:"every"`

	// Скільки разів можна виконати дію за цей період
	N int `toml:"n" yaml:"n"`
}

// Limiter перетворює наші налаштування в готовий rate.Limiter.
// Якщо нічого не задано, повертає nil - ліміту немає.
func (l *Limiter) Limiter() *rate.Limiter {
	if l.Every.Duration <= 0 && l.N <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(l.Every.Duration), max(l.N, 1))
}

// duration - обгортка навколо time.Duration
// Потрібна щоб читати тривалість з конфіг файлу
type duration struct {
	time.Duration
}

// UnmarshalText перетворює текст з конфігу в time.Duration
// Наприклад "5s" -> 5 секунд
func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}
