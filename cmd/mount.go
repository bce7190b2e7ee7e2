// Copyright 2026 The Kvfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kvfs-project/kvfs/internal/logger"
	"github.com/kvfs-project/kvfs/kvfs/engine"
	"github.com/kvfs-project/kvfs/kvstore"
	"github.com/kvfs-project/kvfs/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var mountCmd = &cobra.Command{
	Use:   "mount <kv-dir>",
	Short: "Mount the kvfs engine against a store directory and block until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		MountFlags.StoreDir = args[0]

		store, err := kvstore.OpenFileStore(MountFlags.StoreDir)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		reg := prometheus.NewRegistry()
		m := metrics.New(reg)

		fs, err := engine.Mount(store, engine.Options{
			BlockSize:       MountFlags.BlockSize(),
			MaxOpenFiles:    MountFlags.OpenFileTableSize(),
			InodeCacheSize:  MountFlags.InodeCacheSize,
			DentryCacheSize: MountFlags.DentryCacheSize,
			MaxSymlinkDepth: MountFlags.MaxSymlinkDepth,
			ReadOnly:        MountFlags.ReadOnly,
			Metrics:         m,
		})
		if err != nil {
			return fmt.Errorf("mount: %w", err)
		}
		logger.Infof("mounted kvfs store at %s (mount id %s)", MountFlags.StoreDir, fs.MountID())

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Infof("unmounting kvfs store at %s", MountFlags.StoreDir)
		if err := fs.Unmount(); err != nil {
			return fmt.Errorf("unmount: %w", err)
		}
		return nil
	},
}
