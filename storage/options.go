package storage

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"

	"github.com/arbors/arbors"
)

// EngineOptions configures a storage Engine. Constructible directly, or
// loaded from a TOML or YAML file (spec §3.6, SPEC_FULL §A.3).
type EngineOptions struct {
	// BatchSize is the number of trees chunked into one stored batch
	// (spec §3.6 default: 10 000).
	BatchSize int `toml:"batch_size" yaml:"batch_size"`

	// MmapGrowIncrement is the number of bytes the backing file grows by
	// each time the mapped region runs out of room.
	MmapGrowIncrement int64 `toml:"mmap_grow_increment" yaml:"mmap_grow_increment"`

	// CacheCapacity is the maximum number of fully-decoded batches the
	// batch cache retains (spec §4.6 "full decodes only").
	CacheCapacity int `toml:"cache_capacity" yaml:"cache_capacity"`
}

// DefaultEngineOptions returns the spec's defaults.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		BatchSize:         10_000,
		MmapGrowIncrement: 64 << 20,
		CacheCapacity:     256,
	}
}

// LoadOptionsTOML reads EngineOptions from a TOML file, starting from
// DefaultEngineOptions so an omitted field keeps its default.
func LoadOptionsTOML(path string) (EngineOptions, error) {
	opts := DefaultEngineOptions()
	if _, err := toml.DecodeFile(path, &opts); err != nil {
		return EngineOptions{}, fmt.Errorf("%w: loading engine options from %s: %v", arbors.ErrStorage, path, err)
	}
	return opts, nil
}

// LoadOptionsYAML reads EngineOptions from YAML bytes.
func LoadOptionsYAML(data []byte) (EngineOptions, error) {
	opts := DefaultEngineOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return EngineOptions{}, fmt.Errorf("%w: decoding yaml engine options: %v", arbors.ErrStorage, err)
	}
	return opts, nil
}

// LoadOptionsYAMLFile reads EngineOptions from a YAML file.
func LoadOptionsYAMLFile(path string) (EngineOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EngineOptions{}, fmt.Errorf("%w: reading %s: %v", arbors.ErrStorage, path, err)
	}
	return LoadOptionsYAML(data)
}
