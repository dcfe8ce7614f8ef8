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

package light

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"FlowyChunks/world/chunk"
	"FlowyChunks/world/task"
)

func TestActorOrdering(t *testing.T) {
	mb := task.NewMailbox(zaptest.NewLogger(t))
	a := NewActor(zaptest.NewLogger(t), mb)
	defer a.Close()

	pos := chunk.Pos{1, 2}
	a.UpdateChunkStatus(pos, chunk.Light)
	a.UpdateChunkStatus(pos, chunk.Full)
	f := a.WaitForPendingLight(pos)

	// ф'ючер заповнюється лише головним потоком
	time.Sleep(10 * time.Millisecond)
	if f.Done() {
		t.Fatal("future completed outside of the mailbox")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := mb.ManagedBlock(ctx, f.Done); err != nil {
		t.Fatal(err)
	}
	if s, ok := a.Status(pos); !ok || s != chunk.Full {
		t.Fatalf("want full, got %v", s)
	}
	if a.Updates() != 2 {
		t.Fatalf("want 2 updates, got %d", a.Updates())
	}

	a.UpdateChunkStatus(pos, nil)
	f = a.WaitForPendingLight(pos)
	if err := mb.ManagedBlock(ctx, f.Done); err != nil {
		t.Fatal(err)
	}
	if _, ok := a.Status(pos); ok {
		t.Fatal("unloaded chunk still tracked")
	}
}

func TestActorClosed(t *testing.T) {
	mb := task.NewMailbox(zaptest.NewLogger(t))
	a := NewActor(zaptest.NewLogger(t), mb)
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if !a.WaitForPendingLight(chunk.Pos{}).Done() {
		t.Fatal("wait after close must complete immediately")
	}
	a.UpdateChunkStatus(chunk.Pos{}, chunk.Full)

	// скринька закрита: актор заповнює ф'ючер сам
	mb2 := task.NewMailbox(zaptest.NewLogger(t))
	mb2.Close()
	a2 := NewActor(zaptest.NewLogger(t), mb2)
	f := a2.WaitForPendingLight(chunk.Pos{})
	_ = a2.Close()
	if !f.Done() {
		t.Fatal("future not completed with closed mailbox")
	}
}
