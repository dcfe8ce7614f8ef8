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

// Йоу, чат! Тут описано, з ким світ спілкується ззовні:
// хто дивиться на чанки, хто слухає зміни фаз, хто генерує
// і хто рахує світло. Самі реалізації живуть в інших пакетах.

package world

import (
	"context"

	"github.com/Tnze/go-mc/level"

	"FlowyChunks/world/chunk"
	"FlowyChunks/world/task"
)

// ChunkViewer - той, кому надсилаються чанки, що потрапили в радіус огляду
type ChunkViewer interface {
	ViewChunkLoad(pos level.ChunkPos, c *level.Chunk) // показати чанк
	ViewChunkUnload(pos level.ChunkPos)               // сховати чанк
}

// Listener отримує зміни фаз чанків. Викликається тільки з головного потоку.
// Вхід у фазу приходить знизу вгору, вихід - згори вниз.
type Listener interface {
	ChunkVisible(pos chunk.Pos, c *chunk.Live)
	ChunkInvisible(pos chunk.Pos)
	ChunkTicking(pos chunk.Pos, c *chunk.Live)
	ChunkNotTicking(pos chunk.Pos)
	ChunkEntityTicking(pos chunk.Pos, c *chunk.Live)
	ChunkNotEntityTicking(pos chunk.Pos)
	ChunkUnloaded(pos chunk.Pos)
}

// BaseListener нічого не робить. Вбудовуйте, щоб перевизначити лише потрібне.
type BaseListener struct{}

func (BaseListener) ChunkVisible(chunk.Pos, *chunk.Live) {}
func (BaseListener) ChunkInvisible(chunk.Pos) {}
func (BaseListener) ChunkTicking(chunk.Pos, *chunk.Live) {}
func (BaseListener) ChunkNotTicking(chunk.Pos) {}
func (BaseListener) ChunkEntityTicking(chunk.Pos, *chunk.Live) {}
func (BaseListener) ChunkNotEntityTicking(chunk.Pos) {}
func (BaseListener) ChunkUnloaded(chunk.Pos) {}

// listeners розсилає події кільком слухачам по черзі
type listeners []Listener

func (ls listeners) ChunkVisible(pos chunk.Pos, c *chunk.Live) {
	for _, l := range ls {
		l.ChunkVisible(pos, c)
	}
}

func (ls listeners) ChunkInvisible(pos chunk.Pos) {
	for _, l := range ls {
		l.ChunkInvisible(pos)
	}
}

func (ls listeners) ChunkTicking(pos chunk.Pos, c *chunk.Live) {
	for _, l := range ls {
		l.ChunkTicking(pos, c)
	}
}

func (ls listeners) ChunkNotTicking(pos chunk.Pos) {
	for _, l := range ls {
		l.ChunkNotTicking(pos)
	}
}

func (ls listeners) ChunkEntityTicking(pos chunk.Pos, c *chunk.Live) {
	for _, l := range ls {
		l.ChunkEntityTicking(pos, c)
	}
}

func (ls listeners) ChunkNotEntityTicking(pos chunk.Pos) {
	for _, l := range ls {
		l.ChunkNotEntityTicking(pos)
	}
}

func (ls listeners) ChunkUnloaded(pos chunk.Pos) {
	for _, l := range ls {
		l.ChunkUnloaded(pos)
	}
}

// Generator виконує одну стадію генерації. Викликається з воркерів.
// neighbors - квадрат сусідів по рядках z, центр посередині.
// Для стадії empty в neighbors лежить один порожній прото-чанк.
type Generator interface {
	GenerateStage(ctx context.Context, status *chunk.Status, neighbors []chunk.Access) (chunk.Access, error)
	// LoadStage доводить до status чанк, який вже прочитали з диску
	LoadStage(ctx context.Context, status *chunk.Status, c chunk.Access) (chunk.Access, error)
}

// LightEngine - двигун світла. status == nil означає, що чанк вивантажено.
type LightEngine interface {
	UpdateChunkStatus(pos chunk.Pos, status *chunk.Status)
	WaitForPendingLight(pos chunk.Pos) *task.Future[struct{}]
}
