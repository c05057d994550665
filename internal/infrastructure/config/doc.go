// Package config handles loading and validating relay bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Every recognised setting is a typed field with a default, so unknown or
// malformed values are rejected at load time instead of being silently
// ignored.
//
// Security Considerations:
//   - The MQTT password should be set via RELAYBRIDGE_MQTT_PASSWORD
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.TopicPrefix)
package config
