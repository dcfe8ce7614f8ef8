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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	// zap - мегашвидкий логер, набагато швидший за fmt.Printf
	"go.uber.org/zap"

	"FlowyChunks/game"
)

// isDebug - флаг який можна включити при запуску через -debug
// В дебаг режимі буде більше логів і інформації для розробки
var (
	isDebug    = flag.Bool("debug", false, "Enable debug log output")
	configPath = flag.String("config", "config.toml", "Path to config.toml or config.yaml")
)

func main() {
	flag.Parse()

	var logger *zap.Logger
	if *isDebug {
		logger = unwrap(zap.NewDevelopment())
	} else {
		logger = unwrap(zap.NewProduction())
	}
	defer func(logger *zap.Logger) {
		// stderr на деяких системах не вміє Sync, тому тільки пишемо
		if err := logger.Sync(); err != nil && *isDebug {
			os.Stderr.WriteString("sync logger: " + err.Error() + "\n")
		}
	}(logger)

	logger.Info("Server start")
	printBuildInfo(logger)
	defer logger.Info("Server exit")

	config, err := game.ReadConfig(*configPath)
	if err != nil {
		logger.Error("Read config fail", zap.Error(err))
		return
	}

	g, err := game.NewGame(logger, config)
	if err != nil {
		logger.Error("Init game fail", zap.Error(err))
		return
	}

	// Ctrl+C або SIGTERM зупиняють світ, після чого все зберігається
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := g.Run(ctx); err != nil {
		logger.Error("Game stopped with error", zap.Error(err))
	}
}

// printBuildInfo виводить інформацію про збірку
// Це допомагає знайти проблеми з версіями бібліотек
func printBuildInfo(logger *zap.Logger) {
	binaryInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	settings := make(map[string]string)
	for _, v := range binaryInfo.Settings {
		settings[v.Key] = v.Value
	}
	logger.Debug("Build info", zap.Any("settings", settings))
}

// unwrap - хелпер функція яка спрощує обробку помилок
// Якщо є помилка - відразу панікуємо
func unwrap[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
