package model

import "time"

// Config holds the full wikimirror configuration
type Config struct {
	Remote   RemoteConfig   `yaml:"remote" mapstructure:"remote"`
	Mirror   MirrorConfig   `yaml:"mirror" mapstructure:"mirror"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Local    LocalConfig    `yaml:"local" mapstructure:"local"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// InterwikiEntry is one row of the interwiki table
type InterwikiEntry struct {
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	URL    string `yaml:"url" mapstructure:"url"`
	API    string `yaml:"api" mapstructure:"api"`
	WikiID string `yaml:"wiki_id" mapstructure:"wiki_id"`
}

// RemoteConfig configures access to the remote wiki API
type RemoteConfig struct {
	Wiki              string           `yaml:"wiki" mapstructure:"wiki"`
	Interwiki         []InterwikiEntry `yaml:"interwiki" mapstructure:"interwiki"`
	UserAgent         string           `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration    `yaml:"timeout" mapstructure:"timeout"`
	MaxBytes          int64            `yaml:"max_bytes" mapstructure:"max_bytes"`
	RequestsPerSecond float64          `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int              `yaml:"burst" mapstructure:"burst"`
	HTTPProxy         string           `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy        string           `yaml:"https_proxy" mapstructure:"https_proxy"`
	HostRates         []HostRate       `yaml:"host_rates" mapstructure:"host_rates"`
}

// HostRate overrides the outbound request rate for one API host
type HostRate struct {
	Host              string  `yaml:"host" mapstructure:"host"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// MirrorConfig configures the resolution engine and its caches
type MirrorConfig struct {
	ExcludeNamespaces  []int         `yaml:"exclude_namespaces" mapstructure:"exclude_namespaces"`
	SnapshotDir        string        `yaml:"snapshot_dir" mapstructure:"snapshot_dir"`
	CacheVersion       int           `yaml:"cache_version" mapstructure:"cache_version"`
	CacheTTL           time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	NegativeTTL        time.Duration `yaml:"negative_ttl" mapstructure:"negative_ttl"`
	StaleTTL           time.Duration `yaml:"stale_ttl" mapstructure:"stale_ttl"`
	ProcessTTL         time.Duration `yaml:"process_ttl" mapstructure:"process_ttl"`
	ProcessCapacity    int           `yaml:"process_capacity" mapstructure:"process_capacity"`
	LockTimeout        time.Duration `yaml:"lock_timeout" mapstructure:"lock_timeout"`
	MemoTTL            time.Duration `yaml:"memo_ttl" mapstructure:"memo_ttl"`
	UserRate           float64       `yaml:"user_rate" mapstructure:"user_rate"`
	UserBurst          int           `yaml:"user_burst" mapstructure:"user_burst"`
	ExternalUserPrefix string        `yaml:"external_user_prefix" mapstructure:"external_user_prefix"`
	SearchMaxResults   int           `yaml:"search_max_results" mapstructure:"search_max_results"`
}

// CacheConfig selects the shared cache backend
type CacheConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

// RegistryConfig locates the fork registry database
type RegistryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LocalConfig describes the local wiki's URL layout
type LocalConfig struct {
	Server           string `yaml:"server" mapstructure:"server"`
	ArticlePath      string `yaml:"article_path" mapstructure:"article_path"`
	ScriptPath       string `yaml:"script_path" mapstructure:"script_path"`
	ProjectNamespace string `yaml:"project_namespace" mapstructure:"project_namespace"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Remote: RemoteConfig{
			Wiki: "wikipedia",
			Interwiki: []InterwikiEntry{
				{
					Prefix: "wikipedia",
					URL:    "https://en.wikipedia.org/wiki/$1",
					API:    "https://en.wikipedia.org/w/api.php",
					WikiID: "enwiki",
				},
			},
			UserAgent:         "WikiMirror/0.1 (+https://github.com/ppiankov/wikimirror)",
			Timeout:           30 * time.Second,
			MaxBytes:          16 * 1024 * 1024,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Mirror: MirrorConfig{
			ExcludeNamespaces:  []int{},
			CacheVersion:       3,
			CacheTTL:           time.Hour,
			NegativeTTL:        time.Hour,
			StaleTTL:           24 * time.Hour,
			ProcessTTL:         10 * time.Minute,
			ProcessCapacity:    600,
			LockTimeout:        10 * time.Second,
			MemoTTL:            5 * time.Minute,
			UserRate:           1,
			UserBurst:          10,
			ExternalUserPrefix: "imported",
			SearchMaxResults:   500,
		},
		Cache: CacheConfig{
			Backend: "layered",
			Dir:     "./wikimirror-cache",
		},
		Registry: RegistryConfig{
			Path: "./wikimirror.db",
		},
		Local: LocalConfig{
			Server:           "http://localhost:8080",
			ArticlePath:      "/wiki/$1",
			ScriptPath:       "/w",
			ProjectNamespace: "Project",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
