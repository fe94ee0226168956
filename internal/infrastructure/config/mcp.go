package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MCPFileConfig represents the standalone ~/.zeroclaw/mcp.json configuration.
type MCPFileConfig struct {
	Servers []MCPServerEntry `json:"servers"`
}

// MCPServerEntry is one MCP server in mcp.json. Transport is stdio: the
// gateway spawns Command with Args/Env and speaks MCP JSON-RPC over its
// stdin/stdout. SSEURL is set instead of Command for the optional SSE
// transport (mutually exclusive with Command).
type MCPServerEntry struct {
	Name    string            `json:"name"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	SSEURL  string            `json:"sse_url,omitempty"`
	Enabled bool              `json:"enabled"`
}

// LoadMCPConfig loads MCP configuration from ~/.zeroclaw/mcp.json.
// If the file does not exist, it creates an empty config and returns it.
func LoadMCPConfig(homeDir string) (*MCPFileConfig, string, error) {
	configDir := filepath.Join(homeDir, ".zeroclaw")
	configPath := filepath.Join(configDir, "mcp.json")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create empty config
			cfg := &MCPFileConfig{Servers: []MCPServerEntry{}}
			if mkErr := os.MkdirAll(configDir, 0755); mkErr != nil {
				return cfg, configPath, nil // return empty, best effort
			}
			_ = SaveMCPConfig(configPath, cfg)
			return cfg, configPath, nil
		}
		return nil, configPath, err
	}

	var cfg MCPFileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, configPath, err
	}

	return &cfg, configPath, nil
}

// LoadMCPConfigFile loads MCP configuration from an explicit path, creating
// an empty config on first use. Used by Registry, which is handed a
// resolved mcp.json path rather than a home directory.
func LoadMCPConfigFile(path string) (*MCPFileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &MCPFileConfig{Servers: []MCPServerEntry{}}
			if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr == nil {
				_ = SaveMCPConfig(path, cfg)
			}
			return cfg, nil
		}
		return nil, err
	}
	var cfg MCPFileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveMCPConfig writes the MCP configuration to disk via write-then-rename
// so a crash mid-write never leaves mcp.json truncated or half-written.
func SaveMCPConfig(path string, cfg *MCPFileConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp mcp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename mcp config into place: %w", err)
	}
	return nil
}
