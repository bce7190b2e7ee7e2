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

// Package cmd implements kvfsctl, the thin cobra/viper CLI harness around
// the kvfs engine (spec §10.4): out of core scope, but carried as the
// ambient CLI surface every gcsfuse-lineage repo ships.
package cmd

import (
	"fmt"
	"os"

	"github.com/kvfs-project/kvfs/cfg"
	"github.com/kvfs-project/kvfs/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	bindErr    error
	MountFlags cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "kvfsctl",
	Short: "Inspect and mount a kvfs store",
	Long: `kvfsctl operates on a kvfs store: a directory holding the ordered
key-value keyspace that backs a KV-native POSIX-style file system.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if err := loadConfigFile(); err != nil {
			return err
		}
		if err := viper.Unmarshal(&MountFlags); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		// mount and fsck take the store directory as their <kv-dir> argument.
		if len(args) > 0 {
			MountFlags.StoreDir = args[0]
		}
		if err := cfg.Validate(&MountFlags); err != nil {
			return err
		}
		return logger.Init(logger.Config{
			Format:          MountFlags.Logging.Format,
			Severity:        MountFlags.Logging.Severity,
			FilePath:        MountFlags.Logging.FilePath,
			MaxFileSizeMB:   MountFlags.Logging.MaxFileSizeMB,
			BackupFileCount: MountFlags.Logging.BackupFileCount,
			Compress:        MountFlags.Logging.Compress,
		})
	},
}

func loadConfigFile() error {
	if cfgFile == "" {
		return nil
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", cfgFile, err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(fsckCmd)
}

// Execute runs kvfsctl's root command; main's sole responsibility.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
