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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"exo.dev/exo/pkg/kernel"
)

func newFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v) failed: %v", args, err)
	}
	return fs
}

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exosim.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		LogFormat:   "text",
		MaxEnvs:     1024,
		Frames:      4096,
		BatchPolicy: kernel.BatchAbort,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("default config mismatch (-want +got):\n%s", diff)
	}

	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
}

func TestFromFlags(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t,
		"--debug",
		"--max-envs=64",
		"--batch-policy=report",
		"--ipc-send-retries=3",
	))
	if err != nil {
		t.Fatal(err)
	}
	if want := true; c.Debug != want {
		t.Errorf("Debug=%v, want: %v", c.Debug, want)
	}
	if want := 64; c.MaxEnvs != want {
		t.Errorf("MaxEnvs=%v, want: %v", c.MaxEnvs, want)
	}
	if want := kernel.BatchReport; c.BatchPolicy != want {
		t.Errorf("BatchPolicy=%v, want: %v", c.BatchPolicy, want)
	}
	if want := uint64(3); c.IPCSendRetries != want {
		t.Errorf("IPCSendRetries=%v, want: %v", c.IPCSendRetries, want)
	}
}

func TestToFlagsFromFlags(t *testing.T) {
	orig, err := NewFromFlags(newFlagSet(t))
	if err != nil {
		t.Fatal(err)
	}
	orig.Strace = true
	orig.Frames = 128
	orig.BatchPolicy = kernel.BatchReport
	orig.LogFormat = "json"

	c, err := NewFromFlags(newFlagSet(t, orig.ToFlags()...))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(orig, c); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFile(t *testing.T) {
	path := writeFile(t, `
debug = true
max_envs = 32
frames = 256
batch_policy = "report"
log_format = "logrus"
`)
	c, err := NewFromFlags(newFlagSet(t, "--config="+path, "--frames=512"))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		ConfigFile:  path,
		LogFormat:   "logrus",
		Debug:       true,
		MaxEnvs:     32,
		Frames:      512,
		BatchPolicy: kernel.BatchReport,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFileErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
		want     string
	}{
		{
			name:     "unknown key",
			contents: "colour = \"blue\"\n",
			want:     "unknown settings",
		},
		{
			name:     "bad policy",
			contents: "batch_policy = \"retry\"\n",
			want:     "invalid batch policy",
		},
		{
			name:     "syntax",
			contents: "max_envs = \n",
			want:     "error reading config file",
		},
		{
			name:     "invalid value",
			contents: "max_envs = 48\n",
			want:     "power of two",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, tc.contents)
			_, err := NewFromFlags(newFlagSet(t, "--config="+path))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("NewFromFlags() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
	}{
		{name: "zero envs", args: []string{"--max-envs=0"}},
		{name: "odd envs", args: []string{"--max-envs=100"}},
		{name: "zero frames", args: []string{"--frames=0"}},
		{name: "log format", args: []string{"--log-format=xml"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewFromFlags(newFlagSet(t, tc.args...)); err == nil {
				t.Errorf("NewFromFlags(%v) succeeded", tc.args)
			}
		})
	}
}

func TestMissingFile(t *testing.T) {
	fs := newFlagSet(t, "--config="+filepath.Join(t.TempDir(), "nope.toml"))
	if _, err := NewFromFlags(fs); err == nil {
		t.Error("NewFromFlags succeeded with a missing config file")
	}
}
