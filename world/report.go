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

package world

import (
	"fmt"
	"strings"

	"FlowyChunks/world/chunk"
	"FlowyChunks/world/task"
)

// debugFutures описує стан всіх ф'ючерів усіх записів.
// Потрапляє в лог, коли планувальник порушив свої інваріанти.
func (m *ChunkMap) debugFutures() string {
	var sb strings.Builder
	dump := func(state string, recs map[int64]*ChunkRecord) {
		for _, key := range sortedKeys(recs) {
			rec := recs[key]
			fmt.Fprintf(&sb, "%v %s level=%d epoch=%d entered=%v\n",
				rec.pos, state, rec.level, rec.epoch, rec.EnteredStatus())
			for i, rg := range rec.rungs {
				if rg.future == nil {
					continue
				}
				fmt.Fprintf(&sb, "  %-20s %s (epoch %d)\n", chunk.ByIndex(i), describe(rg.future), rg.epoch)
			}
			for k, p := range rec.phases {
				if p.future == nil {
					continue
				}
				fmt.Fprintf(&sb, "  %-20s %s (epoch %d)\n", phaseStatus[k], describe(p.future), p.epoch)
			}
		}
	}
	dump("updating", m.updating)
	dump("unloading", m.pendingUnloads)
	return sb.String()
}

func describe(f *task.Future[chunk.Result]) string {
	res, ok := f.Now()
	switch {
	case !ok:
		return "pending"
	case res.OK():
		return fmt.Sprintf("ok %T@%v", res.Chunk, res.Chunk.Status())
	default:
		return "failed: " + fmt.Sprint(res.Err)
	}
}

// DebugReport повертає дамп ф'ючерів. Тільки для головного потоку.
func (w *World) DebugReport() string { return w.chunks.debugFutures() }
