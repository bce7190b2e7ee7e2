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

package cfg

// LoggingConfig controls the default logger (internal/logger): destination,
// format, severity threshold, and file-rotation policy.
type LoggingConfig struct {
	FilePath        string `mapstructure:"file-path" yaml:"file-path"`
	Format          string `mapstructure:"format" yaml:"format"`
	Severity        string `mapstructure:"severity" yaml:"severity"`
	MaxFileSizeMB   int    `mapstructure:"max-file-size-mb" yaml:"max-file-size-mb"`
	BackupFileCount int    `mapstructure:"backup-file-count" yaml:"backup-file-count"`
	Compress        bool   `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig controls the Prometheus exporter (metrics package).
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen-addr" yaml:"listen-addr"`
}
