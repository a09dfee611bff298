package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gpio-remote-core/internal/api"
	"github.com/nerrad567/gpio-remote-core/internal/audit"
	"github.com/nerrad567/gpio-remote-core/internal/bridges/gpio"
)

const testJWTSecret = "test-secret-for-development-only-32"

const testItems = `
items:
  - name: porch_light
    binding: "10.0.0.12:8080;17;out"
  - name: boiler_temp
    binding: "10.0.0.13:8080;28-0316a2794bff;temperature"
`

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// writeTestConfig writes a config pointing at itemsPath.
func writeTestConfig(t *testing.T, dir, itemsPath string) string {
	t.Helper()
	return writeFile(t, dir, "config.yaml", `
bridge:
  id: test-bridge
gpio:
  items_file: "`+itemsPath+`"
database:
  path: "`+filepath.Join(dir, "test.db")+`"
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
  qos: 1
influxdb:
  enabled: false
logging:
  level: info
  format: text
  output: stdout
api:
  enabled: true
  host: "127.0.0.1"
  port: 8090
security:
  jwt:
    secret: "`+testJWTSecret+`"
`)
}

// executeCommand runs the CLI with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingItemsFile verifies bindings are loaded before any
// connection is attempted.
func TestRun_MissingItemsFile(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, filepath.Join(dir, "missing.yaml"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if err == nil {
		t.Fatal("run() should fail with a missing items file")
	}
	if !strings.Contains(err.Error(), "loading items") {
		t.Errorf("run() error = %v, want items load failure", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "test.db")); !os.IsNotExist(statErr) {
		t.Error("database should not be created when items fail to load")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("GPIOREMOTE_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("GPIOREMOTE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestTokenCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, writeFile(t, dir, "items.yaml", testItems))

	out, err := executeCommand(t, "token", "--config", configPath, "--subject", "ops-console", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token command error = %v", err)
	}

	claims, err := api.ParseToken(strings.TrimSpace(out), testJWTSecret, "gpioremote")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "ops-console" {
		t.Errorf("Subject = %q, want ops-console", claims.Subject)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > time.Hour || ttl < 50*time.Minute {
		t.Errorf("token lifetime = %v, want about 1h", ttl)
	}
}

func TestTokenCommand_RequiresSubject(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, writeFile(t, dir, "items.yaml", testItems))

	if _, err := executeCommand(t, "token", "--config", configPath); err == nil {
		t.Fatal("token command should fail without --subject")
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, writeFile(t, dir, "items.yaml", testItems))

	out, err := executeCommand(t, "validate", "--config", configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	for _, want := range []string{
		"porch_light",
		"10.0.0.12:8080",
		"28-0316a2794bff",
		"temperature",
		"2 items on 2 endpoints",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("validate output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateCommand_BadBinding(t *testing.T) {
	dir := t.TempDir()
	itemsPath := writeFile(t, dir, "items.yaml", `
items:
  - name: porch_light
    binding: "10.0.0.12:8080;seventeen;out"
`)
	configPath := writeTestConfig(t, dir, itemsPath)

	if _, err := executeCommand(t, "validate", "--config", configPath); err == nil {
		t.Fatal("validate should fail on a bad binding")
	}
}

func TestReloadItems(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "items.yaml", testItems)

	initial, err := gpio.LoadItems(path)
	if err != nil {
		t.Fatalf("LoadItems() error = %v", err)
	}
	registry := gpio.NewRegistry(initial)

	writeFile(t, dir, "items.yaml", `
items:
  - name: garage_door
    binding: "10.0.0.14:8080;22;out"
`)

	next, err := reloadItems(path, registry, initial)
	if err != nil {
		t.Fatalf("reloadItems() error = %v", err)
	}
	if registry.Len() != 1 {
		t.Errorf("registry.Len() = %d, want 1", registry.Len())
	}
	if _, ok := registry.ConfigFor("garage_door"); !ok {
		t.Error("garage_door should be bound after reload")
	}
	if _, ok := registry.ConfigFor("porch_light"); ok {
		t.Error("porch_light should be gone after reload")
	}

	// A broken file leaves the current bindings in place.
	writeFile(t, dir, "items.yaml", "items: [")
	if _, err := reloadItems(path, registry, next); err == nil {
		t.Fatal("reloadItems() should fail on invalid YAML")
	}
	if _, ok := registry.ConfigFor("garage_door"); !ok {
		t.Error("garage_door should survive a failed reload")
	}
}

type pointCall struct {
	kind     string
	item     string
	endpoint string
	pin      int
	high     bool
	since    int64
	deviceID string
	celsius  float64
}

type mockPointWriter struct {
	mu    sync.Mutex
	calls []pointCall
}

func (m *mockPointWriter) WritePinState(item, endpoint string, pin int, high bool, sinceLastChangeMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, pointCall{kind: "pin", item: item, endpoint: endpoint, pin: pin, high: high, since: sinceLastChangeMs})
}

func (m *mockPointWriter) WriteTemperature(item, endpoint, deviceID string, celsius float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, pointCall{kind: "temperature", item: item, endpoint: endpoint, deviceID: deviceID, celsius: celsius})
}

func TestInfluxRecorder(t *testing.T) {
	w := &mockPointWriter{}
	var rec gpio.ReadingRecorder = influxRecorder{client: w}

	rec.RecordPinState("front_door", "10.0.0.12:8080", gpio.PinState{Number: 4, High: true, SinceLastChange: 1500})
	rec.RecordTemperature("boiler_temp", "10.0.0.13:8080", gpio.Temperature{DeviceID: "28-01", MilliDegrees: 22500})

	if len(w.calls) != 2 {
		t.Fatalf("got %d writes, want 2", len(w.calls))
	}

	pin := w.calls[0]
	if pin.kind != "pin" || pin.item != "front_door" || pin.endpoint != "10.0.0.12:8080" ||
		pin.pin != 4 || !pin.high || pin.since != 1500 {
		t.Errorf("pin write = %+v", pin)
	}

	temp := w.calls[1]
	if temp.kind != "temperature" || temp.item != "boiler_temp" || temp.deviceID != "28-01" || temp.celsius != 22.5 {
		t.Errorf("temperature write = %+v", temp)
	}
}

// memoryCommandLog is an in-memory audit.Repository.
type memoryCommandLog struct {
	mu      sync.Mutex
	records []*audit.CommandRecord
}

func (m *memoryCommandLog) Create(_ context.Context, rec *audit.CommandRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryCommandLog) List(context.Context, audit.Filter) (*audit.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &audit.ListResult{Total: len(m.records)}, nil
}

func (m *memoryCommandLog) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func TestStartRecorder_OutlivesShutdownSignal(t *testing.T) {
	repo := &memoryCommandLog{}
	ctx, cancel := context.WithCancel(context.Background())

	recorder := startRecorder(repo, nil)
	if err := recorder.RecordCommand(ctx, gpio.CommandRecord{Item: "porch_light", Outcome: gpio.OutcomeSent}); err != nil {
		t.Fatalf("RecordCommand() error = %v", err)
	}

	// Shutdown signal, then the writer gets time to run before the
	// bridge's last records arrive.
	cancel()
	time.Sleep(50 * time.Millisecond)
	if err := recorder.RecordCommand(ctx, gpio.CommandRecord{Item: "porch_light", Outcome: gpio.OutcomeDropped}); err != nil {
		t.Fatalf("RecordCommand() after signal error = %v", err)
	}

	recorder.Stop()

	if n := repo.len(); n != 2 {
		t.Errorf("command log has %d records, want 2", n)
	}
}
