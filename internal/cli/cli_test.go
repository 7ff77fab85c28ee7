package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"price-threshold-alerts/internal/config"
	"price-threshold-alerts/internal/version"
)

const quietLogging = "logging:\n  output: stderr\n  level: error\n"

func resetRoot() {
	appHandle = nil
	logCloser = nil
	cfgFile = ""
	logLevel = ""
	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetRoot()
	t.Cleanup(func() {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		resetRoot()
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersionCommandSkipsConfig(t *testing.T) {
	out, err := executeRoot(t, "version", "--config", "/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("version should not load config: %v", err)
	}
	if !strings.Contains(out, "version: "+version.Version) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRootEmptyConfigSucceeds(t *testing.T) {
	path := writeConfig(t, "# nothing to watch yet\n"+quietLogging)
	if _, err := executeRoot(t, "--config", path); err != nil {
		t.Fatalf("empty configuration should run cleanly: %v", err)
	}
}

func TestRootUnknownKindFails(t *testing.T) {
	path := writeConfig(t, quietLogging+"groups:\n  g:\n    kind: volume\n    members:\n      x: [1, 2]\n")
	_, err := executeRoot(t, "--config", path)
	if !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "volume") {
		t.Fatalf("error should name the kind: %v", err)
	}
}

func TestRootUnreachableProviderStillSucceeds(t *testing.T) {
	body := quietLogging + `spot_provider: binance
binance:
  base_url: http://127.0.0.1:1
  request_timeout: 1s
crypto_currency:
  BTC: [50000, 80000]
`
	if _, err := executeRoot(t, "--config", writeConfig(t, body)); err != nil {
		t.Fatalf("fetch failures must not fail the run: %v", err)
	}
}

func TestRootWritesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "pricewatch.log")
	body := "logging:\n  output: stderr\n  level: info\n  file: " + logPath + "\n"
	if _, err := executeRoot(t, "--config", writeConfig(t, body)); err != nil {
		t.Fatalf("run: %v", err)
	}

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file should exist: %v", err)
	}
	if !strings.Contains(string(raw), "run complete") {
		t.Fatalf("run summary missing from log file: %q", raw)
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{"run": false, "check": false, "simulate-alert": false, "version": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("subcommand %s not registered", name)
		}
	}
}
