// Copyright 2025 Zenith Chromion Labs
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

package database

import (
	"fmt"
	"log/slog"
	"strings"
)

// BadgerLogger adapts our slog logger to the badger.Logger interface
type BadgerLogger struct {
	logger *slog.Logger
}

func NewBadgerLogger(logger *slog.Logger) *BadgerLogger {
	return &BadgerLogger{
		logger: logger.With("component", "database"),
	}
}

func (b *BadgerLogger) logf(
	logFunc func(string, ...any),
	format string,
	args ...any,
) {
	logFunc(strings.TrimSuffix(fmt.Sprintf(format, args...), "\n"))
}

func (b *BadgerLogger) Errorf(format string, args ...any) {
	b.logf(b.logger.Error, format, args...)
}

func (b *BadgerLogger) Warningf(format string, args ...any) {
	b.logf(b.logger.Warn, format, args...)
}

func (b *BadgerLogger) Infof(format string, args ...any) {
	b.logf(b.logger.Info, format, args...)
}

func (b *BadgerLogger) Debugf(format string, args ...any) {
	b.logf(b.logger.Debug, format, args...)
}
