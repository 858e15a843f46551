package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultName is the profile used when none is requested.
const DefaultName = "default"

// Info summarizes a profile for listings
type Info struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MapSize     int    `json:"map_size"`
	Faults      int    `json:"faults"`
}

// Manager handles profile loading and caching
type Manager struct {
	configDir string
	configs   map[string]*Config
	mu        sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	return &Manager{
		configDir: configDir,
		configs:   make(map[string]*Config),
	}, nil
}

// Dir returns the managed directory
func (m *Manager) Dir() string {
	return m.configDir
}

// LoadConfig loads a profile by name. The empty name selects the default
// profile, which falls back to the built-in one when no file exists.
func (m *Manager) LoadConfig(name string) (*Config, error) {
	if name == "" {
		name = DefaultName
	}
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")

	m.mu.RLock()
	if cfg, exists := m.configs[name]; exists {
		m.mu.RUnlock()
		return cfg, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if cfg, exists := m.configs[name]; exists {
		return cfg, nil
	}

	cfg, err := m.loadFile(name)
	if err != nil {
		return nil, err
	}
	m.configs[name] = cfg
	return cfg, nil
}

func (m *Manager) loadFile(name string) (*Config, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(m.configDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if name == DefaultName {
		cfg := Default()
		if err := cfg.overrideWithEnv(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
}

// ListConfigs returns information about all valid profiles in the directory
func (m *Manager) ListConfigs() ([]*Info, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var infos []*Info
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ext)
		cfg, err := m.LoadConfig(id)
		if err != nil {
			// Skip invalid profiles
			continue
		}

		infos = append(infos, &Info{
			Filename:    entry.Name(),
			ConfigID:    id,
			Name:        cfg.Name,
			Description: cfg.Description,
			MapSize:     cfg.Map.Size,
			Faults:      len(cfg.Faults),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ConfigID < infos[j].ConfigID })
	return infos, nil
}

// RefreshCache drops all cached profiles so the next load reads from disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs = make(map[string]*Config)
}
