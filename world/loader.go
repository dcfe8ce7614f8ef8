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

// Йоу, чат! Сьогодні ми розберемо як чанки потрапляють до гравців!
// Кожен гравець має свій loader: що йому вже надіслано і чи треба
// ще щось надіслати. Квадрати огляду всіх гравців лежать в дереві,
// тому коли чанк стає видимим чи невидимим, ми швидко знаходимо
// гравців, яких це стосується. Надсилаємо по спіралі від центру.

package world

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"FlowyChunks/world/chunk"
	"FlowyChunks/world/internal/viewtree"
	"FlowyChunks/world/ticket"
)

type viewNode = viewtree.Node[int32, *loader]

// loader - стан надсилання чанків одному гравцю
type loader struct {
	player  Player
	viewer  ChunkViewer
	limiter *rate.Limiter
	node    *viewNode
	loaded  map[chunk.Pos]struct{} // надіслані чанки
	dirty   bool                   // можливо є що надіслати
}

// sendChunks надсилає видимі чанки, яких гравець ще не має.
// Якщо ліміт вичерпано, loader лишається брудним до наступного тіку.
func (l *loader) sendChunks(chunks *ChunkMap) {
	center := l.player.chunkPosition()
	for _, off := range loadList[:radiusIdx[l.player.ViewDistance]] {
		pos := center.Offset(off[0], off[1])
		if _, ok := l.loaded[pos]; ok {
			continue
		}
		rec := chunks.Record(pos)
		if rec == nil {
			continue
		}
		live := rec.FullChunk()
		if live == nil {
			continue
		}
		if l.limiter != nil && !l.limiter.Allow() {
			return
		}
		l.loaded[pos] = struct{}{}
		l.viewer.ViewChunkLoad(pos.Level(), live.Column())
	}
	l.dirty = false
}

// unloadOutside ховає чанки, що вийшли з квадрату огляду
func (l *loader) unloadOutside() {
	center := l.player.chunkPosition()
	for pos := range l.loaded {
		if int(pos.Chebyshev(center)) > l.player.ViewDistance {
			l.unload(pos)
		}
	}
}

func (l *loader) unload(pos chunk.Pos) {
	if _, ok := l.loaded[pos]; !ok {
		return
	}
	delete(l.loaded, pos)
	l.viewer.ViewChunkUnload(pos.Level())
}

// tracker слухає зміни видимості чанків і розсилає їх гравцям
type tracker struct {
	BaseListener
	log     *zap.Logger
	chunks  *ChunkMap
	views   viewtree.Tree[int32, *loader]
	loaders map[uuid.UUID]*loader
}

func newTracker(log *zap.Logger) *tracker {
	return &tracker{log: log, loaders: make(map[uuid.UUID]*loader)}
}

func (t *tracker) add(p Player, viewer ChunkViewer, limiter *rate.Limiter) {
	if _, ok := t.loaders[p.ID]; ok {
		t.log.Warn("Player added twice, replacing", zap.Stringer("id", p.ID))
		t.remove(p.ID)
	}
	l := &loader{
		player:  p,
		viewer:  viewer,
		limiter: limiter,
		loaded:  make(map[chunk.Pos]struct{}),
		dirty:   true,
	}
	l.node = t.views.Insert(p.view(), l)
	t.loaders[p.ID] = l
	t.log.Debug("Player added", zap.Stringer("id", p.ID), zap.String("name", p.Name),
		zap.Stringer("chunk", p.chunkPosition()))
}

// remove забуває гравця. Клієнт вже відключився, тому нічого не надсилаємо.
func (t *tracker) remove(id uuid.UUID) {
	l, ok := t.loaders[id]
	if !ok {
		return
	}
	t.views.Delete(l.node)
	delete(t.loaders, id)
	t.log.Debug("Player removed", zap.Stringer("id", id), zap.Int("loaded", len(l.loaded)))
}

func (t *tracker) move(id uuid.UUID, pos [3]float64) {
	l, ok := t.loaders[id]
	if !ok {
		return
	}
	old := l.player.chunkPosition()
	l.player.Position = pos
	if l.player.chunkPosition() != old {
		t.reshape(l)
	}
}

func (t *tracker) setDistances(id uuid.UUID, view, simulation int) {
	l, ok := t.loaders[id]
	if !ok {
		return
	}
	l.player.SimulationDistance = simulation
	if l.player.ViewDistance != view {
		l.player.ViewDistance = view
		t.reshape(l)
	}
}

// reshape оновлює квадрат огляду в дереві після руху чи зміни радіусу
func (t *tracker) reshape(l *loader) {
	l.node = t.views.Move(l.node, l.player.view())
	l.unloadOutside()
	l.dirty = true
}

// playerViews - те, з чого будуються квитки гравців
func (t *tracker) playerViews() []ticket.PlayerView {
	views := make([]ticket.PlayerView, 0, len(t.loaders))
	for _, l := range t.loaders {
		views = append(views, l.player.ticketView())
	}
	return views
}

func (t *tracker) len() int { return len(t.loaders) }

// update надсилає чанки всім гравцям, у яких щось змінилось
func (t *tracker) update() {
	for _, l := range t.loaders {
		if l.dirty {
			l.sendChunks(t.chunks)
		}
	}
}

func (t *tracker) ChunkVisible(pos chunk.Pos, _ *chunk.Live) {
	t.views.Find(viewtree.TouchPoint([2]int32(pos)), func(n *viewNode) bool {
		n.Value.dirty = true
		return true
	})
}

func (t *tracker) ChunkInvisible(pos chunk.Pos) {
	t.views.Find(viewtree.TouchPoint([2]int32(pos)), func(n *viewNode) bool {
		n.Value.unload(pos)
		return true
	})
}

func (t *tracker) ChunkUnloaded(pos chunk.Pos) { t.ChunkInvisible(pos) }

// loadList містить відносні координати чанків навколо центру,
// відсортовані за відстанню Чебишева, а в межах кільця - за Евклідовою
var loadList [][2]int32

// radiusIdx[r] - скільки перших елементів loadList лежать в радіусі r
var radiusIdx []int

func init() {
	const maxR = maxViewDistance
	for x := int32(-maxR); x <= maxR; x++ {
		for z := int32(-maxR); z <= maxR; z++ {
			loadList = append(loadList, [2]int32{x, z})
		}
	}
	sort.SliceStable(loadList, func(i, j int) bool {
		ri, rj := chebyshev(loadList[i]), chebyshev(loadList[j])
		if ri != rj {
			return ri < rj
		}
		return distance2i(loadList[i]) < distance2i(loadList[j])
	})

	radiusIdx = make([]int, maxR+1)
	for i, v := range loadList {
		radiusIdx[chebyshev(v)] = i + 1
	}
}

func chebyshev(pos [2]int32) int32 {
	return max(pos[0], -pos[0], pos[1], -pos[1])
}

// distance2i обчислює Евклідову відстань від точки до початку координат
func distance2i(pos [2]int32) float64 {
	return math.Sqrt(float64(pos[0]*pos[0]) + float64(pos[1]*pos[1]))
}
