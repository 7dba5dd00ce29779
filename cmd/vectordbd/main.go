// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command vectordbd runs the engine as a standalone HTTP service.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/jerryli99/vectordb/internal/db"
	"github.com/jerryli99/vectordb/internal/httpapi"
	"github.com/jerryli99/vectordb/internal/log"
	"github.com/jerryli99/vectordb/internal/paramtable"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; env vars and defaults otherwise)")
	flag.Parse()

	cfg, err := paramtable.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	fs := afero.NewOsFs()
	database := db.New(fs, cfg)

	server, err := httpapi.New(database, cfg, 0)
	if err != nil {
		log.Fatal("failed to build http server", zap.Error(err))
	}
	defer server.Close()

	go runBackupLoop(database, cfg.BackupInterval)

	log.Info("vectordbd starting", zap.String("addr", cfg.ListenAddr), zap.String("data_dir", cfg.DataDir))
	if err := server.Run(cfg.ListenAddr); err != nil {
		log.Error("http server exited", zap.Error(err))
		os.Exit(1)
	}
}

func runBackupLoop(database *db.DB, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := database.PersistAll(); err != nil {
			log.Error("periodic persist failed", zap.Error(err))
		}
	}
}
