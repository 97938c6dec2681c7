// Package config loads bridge configuration from a TOML file with an
// environment variable overlay.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/belst/discordissues/internal/domain/model"
)

// Config holds the bridge configuration. GitHub credentials are either a
// personal access token or an app id plus private key; exactly one form must
// be configured.
type Config struct {
	ListenAddr   string `koanf:"listen_addr"`
	DBPath       string `koanf:"db_path"`
	TriggerEmoji string `koanf:"trigger_emoji"`

	Discord struct {
		Token string `koanf:"token"`
	} `koanf:"discord"`

	GitHub struct {
		Token      string `koanf:"token"`
		AppID      int64  `koanf:"app_id"`
		PrivateKey string `koanf:"private_key"`
	} `koanf:"github"`

	// Mapping is keyed by "owner/name" repository.
	Mapping map[string]Mapping `koanf:"mapping"`
}

// Mapping binds one repository to a chat scope and its allowed roles.
type Mapping struct {
	Target Target   `koanf:"target"`
	Roles  []string `koanf:"roles"`
}

// Target is a chat-side scope: a guild or a single channel.
type Target struct {
	Type string `koanf:"type"`
	ID   string `koanf:"id"`
}

// topLevelKeys are flat config keys whose underscores must survive the env
// key mapping (DISCORDISSUES_DB_PATH targets "db_path", not "db.path").
var topLevelKeys = map[string]bool{
	"listen_addr":   true,
	"db_path":       true,
	"trigger_emoji": true,
}

// Load reads configuration from the given TOML file (or default locations
// when path is empty), applies DISCORDISSUES_* environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	_ = k.Load(confmap.Provider(map[string]interface{}{
		"listen_addr":   "127.0.0.1:8080",
		"db_path":       "discordissues.db",
		"trigger_emoji": "🐛",
	}, "."), nil)

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	} else {
		for _, candidate := range []string{"./discordissues.toml", "$HOME/.discordissues.toml"} {
			candidate = os.ExpandEnv(candidate)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			// An existing but broken file is fatal: silently starting
			// without its routing table would ignore every reaction.
			if err := k.Load(file.Provider(candidate), toml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config %s: %w", candidate, err)
			}
			break
		}
	}

	// DISCORDISSUES_DISCORD_TOKEN -> discord.token, DISCORDISSUES_GITHUB_APP_ID
	// -> github.app_id; flat keys pass through unchanged.
	_ = k.Load(env.Provider("DISCORDISSUES_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "DISCORDISSUES_"))
		if topLevelKeys[key] {
			return key
		}
		return strings.Replace(key, "_", ".", 1)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is required")
	}

	hasToken := c.GitHub.Token != ""
	hasApp := c.GitHub.AppID != 0 || c.GitHub.PrivateKey != ""
	switch {
	case hasToken && hasApp:
		return fmt.Errorf("configure either github.token or github.app_id + github.private_key, not both")
	case hasApp && (c.GitHub.AppID == 0 || c.GitHub.PrivateKey == ""):
		return fmt.Errorf("github app auth requires both github.app_id and github.private_key")
	case !hasToken && !hasApp:
		return fmt.Errorf("github credentials are required")
	}

	for repo, m := range c.Mapping {
		if !strings.Contains(repo, "/") {
			return fmt.Errorf("mapping key %q: expected owner/name", repo)
		}
		if m.Target.Type != string(model.TargetGuild) && m.Target.Type != string(model.TargetChannel) {
			return fmt.Errorf("mapping %q: target type must be %q or %q, got %q",
				repo, model.TargetGuild, model.TargetChannel, m.Target.Type)
		}
		if m.Target.ID == "" {
			return fmt.Errorf("mapping %q: target id is required", repo)
		}
	}

	return nil
}

// UsesAppAuth reports whether the bridge authenticates as a GitHub App.
func (c *Config) UsesAppAuth() bool {
	return c.GitHub.AppID != 0
}

// Bindings converts the mapping table into routing bindings.
func (c *Config) Bindings() []model.RepoBinding {
	bindings := make([]model.RepoBinding, 0, len(c.Mapping))
	for repo, m := range c.Mapping {
		bindings = append(bindings, model.RepoBinding{
			Repo: repo,
			Target: model.RoutingTarget{
				Kind: model.TargetKind(m.Target.Type),
				ID:   m.Target.ID,
			},
			AllowedRoleIDs: m.Roles,
		})
	}
	return bindings
}
