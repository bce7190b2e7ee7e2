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

// Package cfg defines kvfs's runtime configuration surface and binds it to
// cobra/pflag command-line flags and viper-sourced config files/env vars, the
// way the teacher wires its mount command's flags.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kvfs-project/kvfs/kvfs/codec"
	"github.com/kvfs-project/kvfs/kvfs/resolver"
)

// Config is the full set of tunables read from flags, environment variables
// (KVFS_* via viper), or a YAML config file, in that order of precedence.
type Config struct {
	StoreDir        string `mapstructure:"store-dir" yaml:"store-dir"`
	BlockSizeBytes  int    `mapstructure:"block-size-bytes" yaml:"block-size-bytes"`
	MaxOpenFiles    int    `mapstructure:"max-open-files" yaml:"max-open-files"`
	InodeCacheSize  int    `mapstructure:"inode-cache-size" yaml:"inode-cache-size"`
	DentryCacheSize int    `mapstructure:"dentry-cache-size" yaml:"dentry-cache-size"`
	MaxSymlinkDepth int    `mapstructure:"max-symlink-depth" yaml:"max-symlink-depth"`
	ReadOnly        bool   `mapstructure:"read-only" yaml:"read-only"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// DefaultConfig returns the configuration kvfs runs with when no flag, file,
// or environment variable overrides a field.
func DefaultConfig() Config {
	return Config{
		BlockSizeBytes:  codec.DefaultBlockSize,
		MaxOpenFiles:    512,
		InodeCacheSize:  4096,
		DentryCacheSize: 1024,
		MaxSymlinkDepth: resolver.DefaultMaxSymlinks,
		Logging: LoggingConfig{
			Format:   "json",
			Severity: "INFO",
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9477",
		},
	}
}

// BindFlags registers every Config field as a persistent pflag and binds it
// into viper under the matching key, so the effective value resolves as
// flag > environment > config file > default.
func BindFlags(fs *pflag.FlagSet) error {
	d := DefaultConfig()

	fs.String("store-dir", d.StoreDir, "directory holding the backing key-value store")
	fs.Int("block-size-bytes", d.BlockSizeBytes, "fixed block size for file content and inline tails")
	fs.Int("max-open-files", d.MaxOpenFiles, "maximum number of concurrently open file descriptors")
	fs.Int("inode-cache-size", d.InodeCacheSize, "capacity of the inode metadata cache")
	fs.Int("dentry-cache-size", d.DentryCacheSize, "capacity of the directory-entry accelerator cache")
	fs.Int("max-symlink-depth", d.MaxSymlinkDepth, "validated only; the resolver always follows at most 32 symlinks")
	fs.Bool("read-only", d.ReadOnly, "mount the store read-only")
	fs.String("logging-file-path", d.Logging.FilePath, "log file path; empty logs to stderr")
	fs.String("logging-format", d.Logging.Format, "log format: text or json")
	fs.String("logging-severity", d.Logging.Severity, "minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF")
	fs.Int("logging-max-file-size-mb", d.Logging.MaxFileSizeMB, "log file rotation size in MB")
	fs.Int("logging-backup-file-count", d.Logging.BackupFileCount, "number of rotated log files retained")
	fs.Bool("logging-compress", d.Logging.Compress, "gzip-compress rotated log files")
	fs.Bool("metrics-enabled", d.Metrics.Enabled, "Prometheus metrics switch; kvfsctl mount does not read it or serve metrics")
	fs.String("metrics-listen-addr", d.Metrics.ListenAddr, "metrics listen address; kvfsctl mount starts no metrics HTTP server")

	binds := map[string]string{
		"store-dir":                 "store-dir",
		"block-size-bytes":          "block-size-bytes",
		"max-open-files":            "max-open-files",
		"inode-cache-size":          "inode-cache-size",
		"dentry-cache-size":         "dentry-cache-size",
		"max-symlink-depth":         "max-symlink-depth",
		"read-only":                 "read-only",
		"logging-file-path":         "logging.file-path",
		"logging-format":            "logging.format",
		"logging-severity":          "logging.severity",
		"logging-max-file-size-mb":  "logging.max-file-size-mb",
		"logging-backup-file-count": "logging.backup-file-count",
		"logging-compress":          "logging.compress",
		"metrics-enabled":           "metrics.enabled",
		"metrics-listen-addr":       "metrics.listen-addr",
	}
	for flagName, viperKey := range binds {
		if err := viper.BindPFlag(viperKey, fs.Lookup(flagName)); err != nil {
			return err
		}
	}
	viper.SetEnvPrefix("KVFS")
	viper.AutomaticEnv()
	return nil
}

// BlockSize and OpenFileTableSize let callers sanitize a user-supplied
// Config without duplicating the engine's zero-value fallbacks.
func (c Config) BlockSize() int {
	if c.BlockSizeBytes <= 0 {
		return codec.DefaultBlockSize
	}
	return c.BlockSizeBytes
}

func (c Config) OpenFileTableSize() int {
	if c.MaxOpenFiles <= 0 {
		return 512
	}
	return c.MaxOpenFiles
}
