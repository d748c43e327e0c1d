// UniFi Tools - UniFi Controller Monitoring and Management
// Copyright 2026 Mika (mika1337)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mika1337/unifi-tools

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/mika1337/unifi-tools/internal/logging"
	"github.com/mika1337/unifi-tools/internal/monitor"
)

// DefaultConfigPaths lists the paths where config files are searched
// in order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"unifi-tools.yaml",
	"unifi-tools.yml",
	"/etc/unifi-tools/config.yaml",
	"/etc/unifi-tools/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "UNIFI_TOOLS_CONFIG"

// defaultConfig returns a Config with all defaults applied. These are
// loaded first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Address: "",
			Port:    8443,
			Site:    "default",
			// Controllers ship a self-signed certificate; verification
			// is opt-in.
			VerifyTLS: false,
			Timeout:   30 * time.Second,
		},
		Monitor: MonitorConfig{
			Period:  10 * time.Second,
			Backoff: monitor.DefaultBackoff,
			// Port 2 of this switch flaps with the printer's sleep
			// cycle; kept as the shipped default so a bare config
			// stays quiet.
			Ignore: map[string][]int{
				"Switch-Bureau": {2},
			},
		},
		Notify: NotifyConfig{
			WebhookURL: "",
		},
		Ops: OpsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9180",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "console",
			Caller: false,
		},
	}
}

// Load reads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Precedence: ENV > file > defaults. An explicit path skips the
// default search; loading fails if that path does not exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := path
	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// UNIFI_CONTROLLER_ADDRESS -> controller.address
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Controller.resolveCredentials(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config
// paths. Unmapped variables return empty string and are skipped, so
// unrelated environment noise never pollutes the config.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"UNIFI_CONTROLLER_ADDRESS":          "controller.address",
		"UNIFI_CONTROLLER_PORT":             "controller.port",
		"UNIFI_CONTROLLER_SITE":             "controller.site",
		"UNIFI_CONTROLLER_USERNAME":         "controller.username",
		"UNIFI_CONTROLLER_PASSWORD":         "controller.password",
		"UNIFI_CONTROLLER_CREDENTIALS_FILE": "controller.credentials_file",
		"UNIFI_CONTROLLER_VERIFY_TLS":       "controller.verify_tls",
		"UNIFI_CONTROLLER_TIMEOUT":          "controller.timeout",

		"UNIFI_MONITOR_PERIOD":  "monitor.period",
		"UNIFI_MONITOR_BACKOFF": "monitor.backoff",

		"UNIFI_NOTIFY_WEBHOOK_URL": "notify.webhook_url",

		"UNIFI_OPS_ENABLED": "ops.enabled",
		"UNIFI_OPS_LISTEN":  "ops.listen",

		"LOG_LEVEL":  "logging.level",
		"LOG_FORMAT": "logging.format",
		"LOG_CALLER": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
