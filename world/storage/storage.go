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

// Package storage зберігає серіалізовані чанки.
// Є три бекенди: файли регіонів (.mca), база sqlite і пам'ять для тестів.
package storage

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"FlowyChunks/world/chunk"
)

// Storage читає і пише серіалізовані чанки.
// Read може викликатись з кількох воркерів одночасно.
type Storage interface {
	// Read повертає дані чанка або ErrChunkNotExist
	Read(ctx context.Context, pos chunk.Pos) ([]byte, error)
	Write(pos chunk.Pos, data []byte) error
	Close() error
}

var (
	// ErrChunkNotExist повертається коли чанка немає в сховищі
	ErrChunkNotExist = errors.New("chunk not exist")
	// ErrReachRateLimit повертається коли ліміт читання не дочекався
	ErrReachRateLimit = errors.New("reach rate limit")
)

// Limited обмежує швидкість читання чанків
type Limited struct {
	Storage
	limiter *rate.Limiter
}

func WithLimiter(s Storage, limiter *rate.Limiter) *Limited {
	return &Limited{Storage: s, limiter: limiter}
}

func (l *Limited) Read(ctx context.Context, pos chunk.Pos) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReachRateLimit, err)
	}
	return l.Storage.Read(ctx, pos)
}
