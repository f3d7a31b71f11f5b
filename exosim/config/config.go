// Copyright 2026 The gVisor Authors.
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

// Package config provides basic infrastructure to set configuration settings
// for exosim. Each setting is a flag, and may also be given in a TOML file
// named by --config. Flags set on the command line win over the file.
package config

import (
	"fmt"
	"math/bits"
	"reflect"
	"sort"
	"strings"

	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/log"
)

// Config holds configuration that is not part of a workload's parameters.
type Config struct {
	// ConfigFile is the TOML file settings are read from.
	ConfigFile string `flag:"config" toml:"-"`

	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log" toml:"log"`

	// LogFormat is the log format: text, json or logrus.
	LogFormat string `flag:"log-format" toml:"log_format"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug"`

	// AlsoLogToStderr allows to send log messages to stderr.
	AlsoLogToStderr bool `flag:"alsologtostderr" toml:"alsologtostderr"`

	// Strace indicates that system calls should be traced.
	Strace bool `flag:"strace" toml:"strace"`

	// MaxEnvs is the size of the environment table.
	MaxEnvs int `flag:"max-envs" toml:"max_envs"`

	// Frames is the number of physical frames.
	Frames uint `flag:"frames" toml:"frames"`

	// BatchPolicy decides what a failing batch record does.
	BatchPolicy kernel.BatchPolicy `flag:"batch-policy" toml:"batch_policy"`

	// IPCSendRetries bounds the retries of an IPC send. Zero retries until
	// the receiver is ready.
	IPCSendRetries uint64 `flag:"ipc-send-retries" toml:"ipc_send_retries"`
}

func (c *Config) validate() error {
	if c.MaxEnvs <= 0 || bits.OnesCount(uint(c.MaxEnvs)) != 1 {
		return fmt.Errorf("max-envs must be a positive power of two, got %d", c.MaxEnvs)
	}
	if c.Frames == 0 || c.Frames > 1<<20 {
		return fmt.Errorf("frames must be in [1, %d], got %d", 1<<20, c.Frames)
	}
	switch c.LogFormat {
	case "text", "json", "logrus":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text', 'json', or 'logrus'", c.LogFormat)
	}
	return nil
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	var names []string
	values := make(map[string]any)
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		names = append(names, f.Name)
		values[f.Name] = obj.Field(i).Interface()
	}
	sort.Strings(names)
	for _, name := range names {
		log.Infof("\t%s: %v", name, values[name])
	}
	if flags := c.ToFlags(); len(flags) > 0 {
		log.Infof("Non-default flags: %s", strings.Join(flags, " "))
	}
}
