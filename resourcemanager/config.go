package resourcemanager

import "github.com/godlikepanos/respipe/persist"

// configMetadata tags a persisted ResourceManagerConfig so that LoadConfig
// rejects a file written by some unrelated struct, the same convention
// persist.SaveJSON/LoadJSON use for every other on-disk document in the
// pipeline.
var configMetadata = persist.Metadata{Header: "Resource Manager Config", Version: "1.0"}

// ResourceManagerConfig is the manager's read-only settings, per spec.md
// §4.5: "max texture size, texture anisotropy, data directory, cache
// directory." It is decoded from JSON rather than flags or environment
// variables, matching the teacher's settings-on-disk convention (the CLI
// surface itself is out of scope per spec.md §6).
type ResourceManagerConfig struct {
	MaxTextureSize    int
	TextureAnisotropy int
	DataDirectory     string
	CacheDirectory    string
}

// DefaultConfig returns conservative defaults suitable for a fresh install.
func DefaultConfig() ResourceManagerConfig {
	return ResourceManagerConfig{
		MaxTextureSize:    4096,
		TextureAnisotropy: 8,
		DataDirectory:     "data",
		CacheDirectory:    "cache",
	}
}

// LoadConfig reads a ResourceManagerConfig previously written by SaveConfig.
func LoadConfig(path string) (ResourceManagerConfig, error) {
	var cfg ResourceManagerConfig
	err := persist.LoadJSON(configMetadata, &cfg, path)
	return cfg, err
}

// SaveConfig atomically writes cfg to path.
func SaveConfig(cfg ResourceManagerConfig, path string) error {
	return persist.SaveJSON(configMetadata, cfg, path)
}
