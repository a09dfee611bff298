// Package config loads and validates the GPIO remote runtime configuration.
//
// Values are resolved in three layers: built-in defaults, the YAML file,
// then GPIOREMOTE_* environment variables. Validate reports every problem
// at once so an operator can fix a config file in a single pass.
//
// Secrets (MQTT password, InfluxDB token, JWT secret) should be supplied
// through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	interval := cfg.GetRefreshInterval()
package config
