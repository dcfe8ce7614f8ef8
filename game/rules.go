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

package game

import (
	"go.uber.org/zap"

	"FlowyChunks/world"
	"FlowyChunks/world/chunk"
)

// simulation - ігрова логіка з боку системи чанків: знає, в яких
// чанках зараз тікають блоки і сутності. Викликається з головного потоку.
type simulation struct {
	world.BaseListener
	log      *zap.Logger
	ticking  map[chunk.Pos]*chunk.Live
	entities map[chunk.Pos]*chunk.Live
}

func newSimulation(log *zap.Logger) *simulation {
	return &simulation{
		log:      log,
		ticking:  make(map[chunk.Pos]*chunk.Live),
		entities: make(map[chunk.Pos]*chunk.Live),
	}
}

func (s *simulation) ChunkTicking(pos chunk.Pos, c *chunk.Live) {
	if _, ok := s.ticking[pos]; ok {
		s.log.Warn("Chunk started ticking twice", zap.Stringer("pos", pos))
	}
	s.ticking[pos] = c
}

func (s *simulation) ChunkNotTicking(pos chunk.Pos) { delete(s.ticking, pos) }

func (s *simulation) ChunkEntityTicking(pos chunk.Pos, c *chunk.Live) {
	if _, ok := s.ticking[pos]; !ok {
		s.log.Warn("Entities ticking in a chunk that is not ticking", zap.Stringer("pos", pos))
	}
	s.entities[pos] = c
}

func (s *simulation) ChunkNotEntityTicking(pos chunk.Pos) { delete(s.entities, pos) }

func (s *simulation) ChunkUnloaded(pos chunk.Pos) {
	if _, ok := s.ticking[pos]; ok {
		s.log.Warn("Ticking chunk unloaded", zap.Stringer("pos", pos))
		delete(s.ticking, pos)
		delete(s.entities, pos)
	}
}
