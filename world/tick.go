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

// Йоу, чат! Сьогодні ми розберемо як працює система тіків у нашому сервері!
// Тік - це основна одиниця часу, за замовчуванням 50мс (1/20 секунди).
// За тік світ застосовує квитки, виконує все, що прийшло від воркерів,
// вивантажує непотрібні чанки і публікує новий знімок.

package world

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// statsEvery - як часто писати статистику в лог, в тіках
const statsEvery = 20 * 60

// Tick виконує один тік світу. keepTicking каже, чи лишився ще час
// в цьому тіку, від нього залежить скільки вивантажень буде виконано.
func (w *World) Tick(keepTicking func() bool) {
	w.tickets.PurgeStaleTickets()
	w.mailbox.RunPending() // додавання і рухи гравців
	w.playerTickets.Update(w.tracker.playerViews())
	w.chunks.runUpdatesUntilStable()

	w.mailbox.RunPending()
	w.chunks.runUpdatesUntilStable()
	w.chunks.ProcessUnloads(keepTicking)
	w.chunks.PromoteSnapshot()
	w.tracker.update()

	if n := w.tickets.Ticks(); n%statsEvery == 0 {
		w.log.Info("World stats",
			zap.Uint64("tick", n),
			zap.Int("chunks", w.chunks.Len()),
			zap.Int("unloading", w.chunks.PendingUnloads()),
			zap.Int("tickets", w.tickets.TicketCount()),
			zap.Int("queued", w.pool.Queue().Len()),
			zap.Int("players", w.tracker.len()),
		)
	}
}

// Run крутить тіки на поточній горутині, поки ctx не скасують.
// Поточна горутина стає головним потоком світу.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.TickRate)
	defer ticker.Stop()
	for {
		deadline := time.Now().Add(w.cfg.TickRate)
		w.Tick(func() bool { return time.Now().Before(deadline) })

		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := w.Save(saveCtx, false); err != nil {
				w.log.Error("Save world error", zap.Error(err))
			}
			return nil
		case <-ticker.C:
		}
	}
}
