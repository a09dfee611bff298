package gpio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseBinding_Valid(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		wantEp   Endpoint
		wantMode Mode
		wantKey  string
	}{
		{"output", "10.0.0.12:8080;17;out", "10.0.0.12:8080", ModeOut, "17"},
		{"mode defaults to out", "10.0.0.12:8080;17", "10.0.0.12:8080", ModeOut, "17"},
		{"input upper case", "pi-garage:81;4;IN", "pi-garage:81", ModeIn, "4"},
		{"temperature", "10.0.0.13:8080;28-0316a2794bff;temperature", "10.0.0.13:8080", ModeTemperature, "28-0316a2794bff"},
		{"spaces trimmed", " 10.0.0.12:8080 ; 5 ; in ", "10.0.0.12:8080", ModeIn, "5"},
		{"ipv6", "[fd00::12]:8080;3;out", "[fd00::12]:8080", ModeOut, "3"},
		{"pin zero", "10.0.0.12:8080;0;in", "10.0.0.12:8080", ModeIn, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ParseBinding("item", tt.spec)
			if err != nil {
				t.Fatalf("ParseBinding(%q) error = %v", tt.spec, err)
			}
			if b.Endpoint != tt.wantEp {
				t.Errorf("Endpoint = %q, want %q", b.Endpoint, tt.wantEp)
			}
			if b.Mode() != tt.wantMode {
				t.Errorf("Mode = %q, want %q", b.Mode(), tt.wantMode)
			}
			if b.Key() != tt.wantKey {
				t.Errorf("Key = %q, want %q", b.Key(), tt.wantKey)
			}
		})
	}
}

func TestParseBinding_Invalid(t *testing.T) {
	tests := []struct {
		name string
		item string
		spec string
	}{
		{"one field", "x", "10.0.0.12:8080"},
		{"four fields", "x", "10.0.0.12:8080;1;out;extra"},
		{"no port", "x", "10.0.0.12;1;out"},
		{"port zero", "x", "10.0.0.12:0;1;out"},
		{"port too high", "x", "10.0.0.12:70000;1;out"},
		{"port not numeric", "x", "10.0.0.12:http;1;out"},
		{"missing host", "x", ":8080;1;out"},
		{"negative pin", "x", "10.0.0.12:8080;-3;out"},
		{"pin not numeric", "x", "10.0.0.12:8080;a;in"},
		{"empty key", "x", "10.0.0.12:8080;;temperature"},
		{"unknown mode", "x", "10.0.0.12:8080;1;pwm"},
		{"empty item", "", "10.0.0.12:8080;1;out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBinding(tt.item, tt.spec)
			if !errors.Is(err, ErrInvalidBinding) {
				t.Errorf("ParseBinding(%q) error = %v, want ErrInvalidBinding", tt.spec, err)
			}
		})
	}
}

const testItemsYAML = `
items:
  - name: porch_light
    binding: "10.0.0.12:8080;17;out"
  - name: front_door
    binding: "10.0.0.12:8080;4;in"
  - name: boiler_temp
    binding: "10.0.0.13:8080;28-0316a2794bff;temperature"
`

func TestParseItems(t *testing.T) {
	set, err := ParseItems([]byte(testItemsYAML))
	if err != nil {
		t.Fatalf("ParseItems() error = %v", err)
	}

	bindings := set.Bindings()
	wantOrder := []string{"porch_light", "front_door", "boiler_temp"}
	if len(bindings) != len(wantOrder) {
		t.Fatalf("got %d bindings, want %d", len(bindings), len(wantOrder))
	}
	for i, name := range wantOrder {
		if bindings[i].Item != name {
			t.Errorf("bindings[%d] = %q, want %q", i, bindings[i].Item, name)
		}
	}

	b, ok := set.ConfigFor("boiler_temp")
	if !ok || b.Mode() != ModeTemperature {
		t.Errorf("ConfigFor(boiler_temp) = %v, %v", b, ok)
	}
	if _, ok := set.ConfigFor("missing"); ok {
		t.Error("ConfigFor(missing) should not be found")
	}
}

func TestParseItems_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name: "duplicate item",
			yaml: `
items:
  - {name: a, binding: "10.0.0.12:8080;1"}
  - {name: a, binding: "10.0.0.12:8080;2"}
`,
			wantErr: ErrDuplicateItem,
		},
		{
			name: "bad binding",
			yaml: `
items:
  - {name: a, binding: "nope"}
`,
			wantErr: ErrInvalidBinding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseItems([]byte(tt.yaml)); !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseItems() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := ParseItems([]byte("items: [unclosed")); err == nil {
		t.Error("ParseItems(invalid yaml) expected error")
	}
}

func TestLoadItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.yaml")
	if err := os.WriteFile(path, []byte(testItemsYAML), 0o600); err != nil {
		t.Fatalf("write items: %v", err)
	}

	set, err := LoadItems(path)
	if err != nil {
		t.Fatalf("LoadItems() error = %v", err)
	}
	if n := len(set.Bindings()); n != 3 {
		t.Errorf("LoadItems() loaded %d bindings, want 3", n)
	}

	if _, err := LoadItems(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadItems(missing) expected error")
	}
}
