package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/afcctl/internal/controlapp"
	"github.com/danmuck/afcctl/internal/vendor"
)

type fileConfig struct {
	ID             string           `toml:"id"`
	Listen         string           `toml:"listen"`
	Status         string           `toml:"status"`
	Ack            bool             `toml:"ack"`
	StrictLocation bool             `toml:"strict_location"`
	Version        string           `toml:"version"`
	Channel        int              `toml:"channel"`
	MaxPacketBytes int              `toml:"max_packet_bytes"`
	MaxFields      int              `toml:"max_fields"`
	Vendor         vendorFileConfig `toml:"vendor"`
}

type vendorFileConfig struct {
	Timeout string              `toml:"timeout"`
	Hooks   map[string][]string `toml:"hooks"`
}

func loadServiceConfig(path string) (controlapp.ServiceConfig, error) {
	cfg := controlapp.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return controlapp.ServiceConfig{}, fmt.Errorf("load afcctl config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.NodeID = id
		}
	}
	if meta.IsDefined("listen") {
		cfg.ListenAddr = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("status") {
		cfg.StatusAddr = strings.TrimSpace(raw.Status)
	}
	if meta.IsDefined("ack") {
		cfg.Ack = raw.Ack
	}
	if meta.IsDefined("strict_location") {
		cfg.StrictLocation = raw.StrictLocation
	}
	if meta.IsDefined("version") {
		if v := strings.TrimSpace(raw.Version); v != "" {
			cfg.Version = v
		}
	}
	if meta.IsDefined("channel") {
		cfg.Channel = raw.Channel
	}
	if meta.IsDefined("max_packet_bytes") {
		cfg.MaxPacketBytes = raw.MaxPacketBytes
	}
	if meta.IsDefined("max_fields") {
		cfg.MaxFields = raw.MaxFields
	}

	if meta.IsDefined("vendor", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Vendor.Timeout))
		if err != nil {
			return controlapp.ServiceConfig{}, fmt.Errorf("parse vendor.timeout: %w", err)
		}
		cfg.Vendor.Timeout = d
	}
	if meta.IsDefined("vendor", "hooks") {
		hooks, err := normalizeHooks(raw.Vendor.Hooks)
		if err != nil {
			return controlapp.ServiceConfig{}, err
		}
		cfg.Vendor.Hooks = hooks
	}

	return cfg, nil
}

func normalizeHooks(in map[string][]string) (map[vendor.Kind][]string, error) {
	out := make(map[vendor.Kind][]string, len(in))
	for name, argv := range in {
		kind := vendor.Kind(strings.TrimSpace(name))
		if !vendor.KnownKind(kind) {
			return nil, fmt.Errorf("vendor.hooks: unknown action %q", name)
		}
		args := make([]string, 0, len(argv))
		for _, a := range argv {
			if a = strings.TrimSpace(a); a != "" {
				args = append(args, a)
			}
		}
		if len(args) == 0 {
			continue
		}
		out[kind] = args
	}
	return out, nil
}
