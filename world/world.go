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

// Йоу, чат! Сьогодні ми розберемо як влаштований світ у нашому сервері!
// World збирає докупи всю систему чанків: квитки, реєстр записів,
// воркерів, скриньку головного потоку і трекер гравців.
// Головний потік - це той, хто викликає Tick або Run. Всі інші
// горутини спілкуються зі світом через Execute і опублікований знімок.

package world

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"FlowyChunks/world/chunk"
	"FlowyChunks/world/light"
	"FlowyChunks/world/storage"
	"FlowyChunks/world/task"
	"FlowyChunks/world/ticket"
)

// Config - налаштування світу
type Config struct {
	ViewDistance       int           // радіус огляду гравців в чанках
	SimulationDistance int           // радіус симуляції навколо гравців
	Workers            int           // 0 - вся робота йде на головному потоці
	TickRate           time.Duration // тривалість тіку

	UnloadBudget     int           // скільки записів вивантажувати за тік
	UnloadBacklog    int           // після цього вивантаження йде без ліміту
	AutosavePerTick  int           // скільки чанків автозберігати за тік
	AutosaveCooldown time.Duration // як часто можна зберігати один чанк
}

// maxViewDistance обмежує радіус огляду розміром спіралі завантаження
const maxViewDistance = 32

func (c Config) withDefaults() Config {
	if c.ViewDistance <= 0 {
		c.ViewDistance = 10
	}
	c.ViewDistance = min(c.ViewDistance, maxViewDistance)
	if c.SimulationDistance <= 0 {
		c.SimulationDistance = min(10, c.ViewDistance)
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.TickRate <= 0 {
		c.TickRate = 50 * time.Millisecond
	}
	if c.UnloadBudget <= 0 {
		c.UnloadBudget = 200
	}
	if c.UnloadBacklog <= 0 {
		c.UnloadBacklog = 2000
	}
	if c.AutosavePerTick <= 0 {
		c.AutosavePerTick = 20
	}
	if c.AutosaveCooldown <= 0 {
		c.AutosaveCooldown = 10 * time.Second
	}
	return c
}

// World - один вимір з власною системою чанків
type World struct {
	log *zap.Logger
	cfg Config

	mailbox       *task.Mailbox
	pool          *task.Pool
	mainQueue     *task.Queue
	tickets       *ticket.DistanceManager
	playerTickets *ticket.PlayerTickets
	chunks        *ChunkMap
	tracker       *tracker
	ownLight      *light.Actor // створений світом, світ його і закриває

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	closed bool
}

// New створює світ. Якщо Workers > 0, воркери стартують одразу.
// listener може бути nil. Якщо lights == nil, світ запускає власний light.Actor.
func New(log *zap.Logger, cfg Config, st storage.Storage, gen Generator, lights LightEngine, listener Listener) *World {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	w := &World{
		log:       log,
		cfg:       cfg,
		mailbox:   task.NewMailbox(log.Named("mailbox")),
		pool:      task.NewPool(log.Named("workers"), cfg.Workers),
		mainQueue: task.NewQueue(),
		tickets:   ticket.NewDistanceManager(log.Named("tickets")),
		ctx:       ctx,
		cancel:    cancel,
	}
	w.playerTickets = ticket.NewPlayerTickets(w.tickets)
	if lights == nil {
		w.ownLight = light.NewActor(log.Named("light"), w.mailbox)
		lights = w.ownLight
	}
	w.tracker = newTracker(log.Named("tracker"))

	hooks := listeners{w.tracker}
	if listener != nil {
		hooks = append(hooks, listener)
	}
	w.chunks = newChunkMap(ctx, log.Named("chunks"), cfg, st, gen, lights, hooks,
		w.mailbox, w.pool.Queue(), w.mainQueue, w.tickets)
	w.tracker.chunks = w.chunks

	w.mailbox.Drain(w.mainQueue)
	if w.pool.Size() == 0 {
		w.mailbox.Drain(w.pool.Queue())
	} else {
		w.group, _ = errgroup.WithContext(ctx)
		w.group.Go(func() error { return w.pool.Run(ctx) })
	}
	return w
}

// Config повертає налаштування з підставленими значеннями за замовчуванням
func (w *World) Config() Config { return w.cfg }

// Chunks повертає реєстр записів. Тільки для головного потоку.
func (w *World) Chunks() *ChunkMap { return w.chunks }

// Tickets повертає менеджер квитків. Тільки для головного потоку.
func (w *World) Tickets() *ticket.DistanceManager { return w.tickets }

// Execute виконує fn на головному потоці в найближчому тіку
func (w *World) Execute(fn func()) error {
	return w.mailbox.Execute(fn)
}

// ChunkFuture повертає ф'ючер сходинки status для чанка pos.
// З create чанк отримує короткий квиток Unknown, інакше повертається
// тільки те, що вже заплановано. Тільки для головного потоку.
func (w *World) ChunkFuture(pos chunk.Pos, status *chunk.Status, create bool) *task.Future[chunk.Result] {
	level := chunk.ByStatus(status)
	if create {
		w.tickets.AddTicket(ticket.Unknown, pos, level, pos)
		w.chunks.runUpdatesUntilStable()
	}
	rec := w.chunks.Record(pos)
	if rec == nil {
		return unloadedFuture
	}
	if !create {
		return rec.FutureIfPresent(status)
	}
	if rec.Level() > level {
		return unloadedFuture
	}
	return w.chunks.GetOrScheduleFuture(rec, status)
}

// GetChunk блокує головний потік, поки чанк не дійде до status.
// Поки чекає, головний потік виконує повідомлення і задачі.
func (w *World) GetChunk(ctx context.Context, pos chunk.Pos, status *chunk.Status, create bool) (chunk.Access, error) {
	f := w.ChunkFuture(pos, status, create)
	if err := w.mailbox.ManagedBlock(ctx, f.Done); err != nil {
		return nil, err
	}
	res, _ := f.Now()
	if !res.OK() {
		if res.Err == nil {
			return nil, chunk.ErrUnloaded
		}
		return nil, res.Err
	}
	return res.Chunk, nil
}

func (w *World) AddTicket(typ *ticket.Type, pos chunk.Pos, level int, payload any) {
	w.tickets.AddTicket(typ, pos, level, payload)
}

func (w *World) RemoveTicket(typ *ticket.Type, pos chunk.Pos, level int, payload any) {
	w.tickets.RemoveTicket(typ, pos, level, payload)
}

func (w *World) AddRegionTicket(typ *ticket.Type, pos chunk.Pos, radius int, payload any) {
	w.tickets.AddRegionTicket(typ, pos, radius, payload)
}

func (w *World) RemoveRegionTicket(typ *ticket.Type, pos chunk.Pos, radius int, payload any) {
	w.tickets.RemoveRegionTicket(typ, pos, radius, payload)
}

// SetForced тримає чанк повністю завантаженим, поки forced не скинуть
func (w *World) SetForced(pos chunk.Pos, forced bool) {
	if forced {
		w.tickets.AddTicket(ticket.Forced, pos, chunk.FullLevel, pos)
	} else {
		w.tickets.RemoveTicket(ticket.Forced, pos, chunk.FullLevel, pos)
	}
}

// VisibleChunk читає опублікований знімок. Безпечно з будь-якої горутини.
func (w *World) VisibleChunk(pos chunk.Pos) (ChunkInfo, bool) { return w.chunks.Visible(pos) }

// VisibleChunks повертає весь опублікований знімок. Мапу не можна змінювати.
func (w *World) VisibleChunks() map[int64]ChunkInfo { return w.chunks.VisibleAll() }

// Save зберігає чанки. Тільки для головного потоку.
func (w *World) Save(ctx context.Context, flush bool) error {
	return w.chunks.Save(ctx, flush)
}

// Close зберігає все, зупиняє воркерів і закриває скриньку.
// Сховище і двигун світла закриває той, хто їх створив.
func (w *World) Close(ctx context.Context) (err error) {
	if w.closed {
		return nil
	}
	w.closed = true
	err = w.chunks.Save(ctx, true)
	w.cancel()
	w.pool.Close()
	if w.group != nil {
		err = multierr.Append(err, w.group.Wait())
	}
	if w.ownLight != nil {
		err = multierr.Append(err, w.ownLight.Close())
	}
	w.mailbox.Close()
	w.log.Info("World closed", zap.Int("chunks", w.chunks.Len()))
	return
}
