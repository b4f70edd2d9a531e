package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samsaffron/wazuh-chat/internal/config"
)

// resetFlags restores every package-level flag variable. cobra keeps
// parsed values between Execute calls.
func resetFlags() {
	flagConfig, flagLogLevel, flagBackend = "", "", ""
	chatSession, chatNew = "", false
	askSession, askPlain, askJSON, askCopy = "", false, false, false
	renderFormat, renderNoDedupe, renderWidth = "term", false, 0
	sessionsFilter, sessionsLimit, sessionsJSON, sessionsHTML, sessionsYes = "", 50, false, false, false
	healthJSON = false
	serveSetup, serveIdleTimeout = false, 0
	configForce, installCompletions = false, false
}

// testConfig writes a config file under a temp dir whose sessions
// database also lives there, and returns its path.
func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))

	path := filepath.Join(dir, "config.yaml")
	cfg := config.Default()
	cfg.Sessions.Path = filepath.Join(dir, "sessions.db")
	cfg.Log.Level = "off"
	if err := config.Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return path
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags()
	})
	err := rootCmd.Execute()
	return out.String(), err
}
