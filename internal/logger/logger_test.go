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

package logger

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redirect(t *testing.T, buf *bytes.Buffer, format, severity string) {
	t.Helper()
	defaultFactory.format = format
	defaultFactory.levelVar.Set(ParseLevel(severity))
	defaultLogger = slog.New(defaultFactory.handler(buf))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelTrace, ParseLevel("trace"))
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelInfo, ParseLevel("Info"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelOff, ParseLevel("off"))
	assert.Equal(t, LevelOff, ParseLevel("garbage"))
}

func TestSeverityThresholdFiltersLowerLevels(t *testing.T) {
	var buf bytes.Buffer
	redirect(t, &buf, "text", "WARNING")

	Infof("info line")
	Warnf("warn line")
	Errorf("error line")

	out := buf.String()
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "warn line")
	assert.Contains(t, out, "error line")
}

func TestTextFormatIncludesSeverityName(t *testing.T) {
	var buf bytes.Buffer
	redirect(t, &buf, "text", "TRACE")

	Tracef("hello %s", "world")

	assert.Contains(t, buf.String(), "severity=TRACE")
	assert.Contains(t, buf.String(), "hello world")
}

func TestJSONFormatIsValidAndCarriesSeverity(t *testing.T) {
	var buf bytes.Buffer
	redirect(t, &buf, "json", "DEBUG")

	Debugf("debug payload")

	out := buf.String()
	assert.Contains(t, out, `"severity":"DEBUG"`)
	assert.Contains(t, out, "debug payload")
}

func TestSetFormatSwitchesOutputShape(t *testing.T) {
	require.NoError(t, Init(Config{Format: "json", Severity: "INFO"}))
	SetFormat("text")
	assert.Equal(t, "text", defaultFactory.format)
	SetFormat("")
	assert.Equal(t, "json", defaultFactory.format)
}

func TestInitWithFilePathConfiguresRotation(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/kvfs.log"
	require.NoError(t, Init(Config{
		FilePath:        path,
		Format:          "text",
		Severity:        "INFO",
		MaxFileSizeMB:   10,
		BackupFileCount: 3,
		Compress:        true,
	}))
	require.NotNil(t, defaultFactory.file)
	assert.Equal(t, path, defaultFactory.file.Filename)
	assert.Equal(t, 3, defaultFactory.file.MaxBackups)
	assert.True(t, defaultFactory.file.Compress)

	Infof("to file")
	_ = defaultFactory.file.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "to file"))
}
