// Package config defines the JSON-serializable configuration structures
// used to set up a blob cache entry: prefetch tuning and the two cache
// working-directory layouts, modeled on BlobCacheEntryConfig and its
// nested structs (api/src/http.rs in the reference implementation).
package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BlobPrefetchConfig tunes background data prefetching for a blob cache.
type BlobPrefetchConfig struct {
	Enable bool `json:"enable"`
	// ThreadsCount is the number of prefetch worker goroutines.
	ThreadsCount int `json:"threads_count"`
	// MergingSize is the maximum size, in bytes, of a single merged
	// backend fetch issued during prefetch.
	MergingSize int `json:"merging_size"`
	// BandwidthRate caps prefetch bandwidth in bytes/sec; 0 means
	// unlimited.
	BandwidthRate uint32 `json:"bandwidth_rate"`
}

func defaultWorkDir() string { return "." }

// FileCacheConfig configures a local single-file-per-blob cache.
type FileCacheConfig struct {
	WorkDir string `json:"work_dir"`
	// DisableIndexedMap is retained for wire compatibility; new code
	// should leave it false.
	DisableIndexedMap bool `json:"disable_indexed_map"`
}

// UnmarshalJSON applies the work_dir default before delegating to the
// normal field-by-field decode.
func (c *FileCacheConfig) UnmarshalJSON(data []byte) error {
	type alias FileCacheConfig
	aux := alias{WorkDir: defaultWorkDir()}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = FileCacheConfig(aux)
	return nil
}

// GetWorkDir validates (creating if necessary) the configured work_dir
// and fails if a non-directory already occupies that path.
func (c *FileCacheConfig) GetWorkDir() (string, error) {
	return getWorkDir(c.WorkDir, "filecache")
}

// FsCacheConfig configures a Linux fscache-backed shared cache.
type FsCacheConfig struct {
	WorkDir string `json:"work_dir"`
}

// UnmarshalJSON applies the work_dir default before delegating to the
// normal field-by-field decode.
func (c *FsCacheConfig) UnmarshalJSON(data []byte) error {
	type alias FsCacheConfig
	aux := alias{WorkDir: defaultWorkDir()}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = FsCacheConfig(aux)
	return nil
}

// GetWorkDir validates (creating if necessary) the configured work_dir
// and fails if a non-directory already occupies that path.
func (c *FsCacheConfig) GetWorkDir() (string, error) {
	return getWorkDir(c.WorkDir, "fscache")
}

func getWorkDir(workDir, label string) (string, error) {
	info, err := os.Stat(workDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("%s: failed to stat work_dir %s: %w", label, workDir, err)
		}
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return "", fmt.Errorf("%s: failed to create work_dir %s: %w", label, workDir, err)
		}
		info, err = os.Stat(workDir)
		if err != nil {
			return "", fmt.Errorf("%s: failed to stat work_dir %s after creating it: %w", label, workDir, err)
		}
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s work_dir %s is not a directory", label, workDir)
	}
	return workDir, nil
}

// ProxyConfig configures an optional P2P proxy in front of a registry
// backend.
type ProxyConfig struct {
	URL            string `json:"url"`
	PingURL        string `json:"ping_url"`
	Fallback       bool   `json:"fallback"`
	CheckInterval  uint64 `json:"check_interval"`
}

// DefaultProxyConfig returns the zero-value proxy config with fallback
// enabled and a 5-second check interval, matching the reference
// implementation's Default impl.
func DefaultProxyConfig() ProxyConfig {
	return ProxyConfig{Fallback: true, CheckInterval: 5}
}

// RegistryOssConfig configures a registry/object-store backend.
type RegistryOssConfig struct {
	Proxy           ProxyConfig `json:"proxy"`
	SkipVerify      bool        `json:"skip_verify"`
	Timeout         uint64      `json:"timeout"`
	ConnectTimeout  uint64      `json:"connect_timeout"`
	RetryLimit      uint8       `json:"retry_limit"`
}

// DefaultRegistryOssConfig returns the reference implementation's
// default registry config: 5s timeouts, no retries.
func DefaultRegistryOssConfig() RegistryOssConfig {
	return RegistryOssConfig{Proxy: DefaultProxyConfig(), Timeout: 5, ConnectTimeout: 5}
}

// BlobCacheEntryConfig is the top-level configuration for constructing
// one blob's cache, corresponding to a FactoryConfig.
type BlobCacheEntryConfig struct {
	ID            string          `json:"id"`
	BackendType   string          `json:"backend_type"`
	BackendConfig jsoniter.RawMessage `json:"backend_config"`
	CacheType     string          `json:"cache_type"`
	CacheConfig   jsoniter.RawMessage `json:"cache_config"`
	PrefetchConfig BlobPrefetchConfig `json:"prefetch_config"`
	MetadataPath  *string         `json:"metadata_path,omitempty"`
}

// Marshal serializes v with the package's json-iterator codec.
func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes data into v with the package's json-iterator
// codec.
func Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
