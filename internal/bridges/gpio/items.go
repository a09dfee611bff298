package gpio

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ItemsFile is the on-disk form of an item binding list.
//
//	items:
//	  - name: porch_light
//	    binding: "192.168.1.40:8080;17;out"
//	  - name: boiler_temp
//	    binding: "192.168.1.41:8080;28-0316a2794bff;temperature"
type ItemsFile struct {
	Items []ItemEntry `yaml:"items"`
}

// ItemEntry declares one item and its binding string.
type ItemEntry struct {
	Name    string `yaml:"name"`
	Binding string `yaml:"binding"`
}

// ParseBinding parses a binding string of the form
// "<host:port>;<pinOrDeviceId>;<out|in|temperature>". The mode may be
// omitted, in which case the binding is an output pin.
func ParseBinding(item, spec string) (*Binding, error) {
	if item == "" {
		return nil, fmt.Errorf("%w: empty item name", ErrInvalidBinding)
	}

	parts := strings.Split(spec, ";")
	if len(parts) != 2 && len(parts) != 3 {
		return nil, fmt.Errorf("%w: item %q: expected host:port;key[;mode], got %q", ErrInvalidBinding, item, spec)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	ep, err := parseEndpoint(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: item %q: %v", ErrInvalidBinding, item, err)
	}

	mode := ModeOut
	if len(parts) == 3 {
		if mode, err = ParseMode(strings.ToLower(parts[2])); err != nil {
			return nil, fmt.Errorf("item %q: %w", item, err)
		}
	}

	key := parts[1]
	if key == "" {
		return nil, fmt.Errorf("%w: item %q: empty pin or device id", ErrInvalidBinding, item)
	}

	switch mode {
	case ModeTemperature:
		return NewTemperatureBinding(item, ep, key), nil
	default:
		pin, err := strconv.Atoi(key)
		if err != nil || pin < 0 {
			return nil, fmt.Errorf("%w: item %q: pin %q is not a non-negative integer", ErrInvalidBinding, item, key)
		}
		if mode == ModeIn {
			return NewInputBinding(item, ep, pin), nil
		}
		return NewOutputBinding(item, ep, pin), nil
	}
}

func parseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", fmt.Errorf("endpoint %q: %v", s, err)
	}
	if host == "" {
		return "", fmt.Errorf("endpoint %q: missing host", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", fmt.Errorf("endpoint %q: port must be 1-65535", s)
	}
	return Endpoint(net.JoinHostPort(host, portStr)), nil
}

// ParseItems parses items file content into an ItemSet.
func ParseItems(data []byte) (*ItemSet, error) {
	var f ItemsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing items: %w", err)
	}

	bindings := make([]*Binding, 0, len(f.Items))
	for i, entry := range f.Items {
		b, err := ParseBinding(strings.TrimSpace(entry.Name), entry.Binding)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		bindings = append(bindings, b)
	}

	return NewItemSet(bindings...)
}

// LoadItems reads and parses an items file.
func LoadItems(path string) (*ItemSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading items file: %w", err)
	}
	return ParseItems(data)
}
