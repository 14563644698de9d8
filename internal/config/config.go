package config

import "github.com/spf13/viper"

// Version is set at build time via -ldflags.
var Version = "dev"

// Upstream holds the connection parameters for the ERP form-query RPC.
type Upstream struct {
	URL            string
	Account        string
	User           string
	AppID          string
	AppSecret      string
	LCID           int
	ConnectTimeout int // seconds
	RequestTimeout int // seconds
	PageSize       int
}

// MaterialClass is one prefix rule from the material_classes list.
// Pattern is a regular expression matched against the material code;
// the first matching rule wins.
type MaterialClass struct {
	ID          string   `mapstructure:"id"`
	Pattern     string   `mapstructure:"pattern"`
	DisplayName string   `mapstructure:"display_name"`
	SourceForm  string   `mapstructure:"source_form"`
	MTOField    string   `mapstructure:"mto_field"`
	Columns     []string `mapstructure:"columns"`
}

// Config holds all runtime configuration for the gateway.
type Config struct {
	DBPath       string
	ProgressPath string
	ListenPort   int

	Upstream Upstream

	AutoSyncEnabled bool
	Schedule        []string // "HH:MM" local wall-clock times
	DaysBack        int

	ManualDefaultDays int
	ManualMinDays     int
	ManualMaxDays     int

	ChunkDays      int
	BatchSize      int
	ParallelChunks int
	RetryCount     int

	CacheMaxSize     int
	CacheTTLSeconds  int
	FreshnessSeconds int

	MaterialClasses []MaterialClass
}

// Load reads configuration from viper, which merges flag values, env vars,
// the optional YAML config file, and defaults (set up by the cobra command
// in cmd/mtogate). Load is cheap and side-effect free, so callers that need
// hot-reload semantics (the scheduler) simply call it again.
func Load() Config {
	cfg := Config{
		DBPath:       viper.GetString("db_path"),
		ProgressPath: viper.GetString("progress_path"),
		ListenPort:   viper.GetInt("listen_port"),

		Upstream: Upstream{
			URL:            viper.GetString("upstream.url"),
			Account:        viper.GetString("upstream.account"),
			User:           viper.GetString("upstream.user"),
			AppID:          viper.GetString("upstream.app_id"),
			AppSecret:      viper.GetString("upstream.app_secret"),
			LCID:           viper.GetInt("upstream.lcid"),
			ConnectTimeout: viper.GetInt("upstream.connect_timeout"),
			RequestTimeout: viper.GetInt("upstream.request_timeout"),
			PageSize:       viper.GetInt("upstream.page_size"),
		},

		AutoSyncEnabled: viper.GetBool("sync.auto_sync.enabled"),
		Schedule:        viper.GetStringSlice("sync.auto_sync.schedule"),
		DaysBack:        viper.GetInt("sync.auto_sync.days_back"),

		ManualDefaultDays: viper.GetInt("sync.manual_sync.default_days"),
		ManualMinDays:     viper.GetInt("sync.manual_sync.min_days"),
		ManualMaxDays:     viper.GetInt("sync.manual_sync.max_days"),

		ChunkDays:      viper.GetInt("sync.performance.chunk_days"),
		BatchSize:      viper.GetInt("sync.performance.batch_size"),
		ParallelChunks: viper.GetInt("sync.performance.parallel_chunks"),
		RetryCount:     viper.GetInt("sync.performance.retry_count"),

		CacheMaxSize:     viper.GetInt("memory_cache.max_size"),
		CacheTTLSeconds:  viper.GetInt("memory_cache.ttl_seconds"),
		FreshnessSeconds: viper.GetInt("persistent_freshness_seconds"),
	}

	var classes []MaterialClass
	if err := viper.UnmarshalKey("material_classes", &classes); err == nil && len(classes) > 0 {
		cfg.MaterialClasses = classes
	} else {
		cfg.MaterialClasses = DefaultMaterialClasses()
	}

	return cfg
}

// DefaultMaterialClasses returns the three seeded prefix rules used when the
// config file does not override material_classes.
func DefaultMaterialClasses() []MaterialClass {
	return []MaterialClass{
		{
			ID:          "finished",
			Pattern:     `^07\.`,
			DisplayName: "Finished goods",
			SourceForm:  "sales-order",
			MTOField:    "mto_c",
			Columns:     []string{"sales_order_qty", "prod_instock_real_qty", "pick_actual_qty"},
		},
		{
			ID:          "self-made",
			Pattern:     `^05\.`,
			DisplayName: "Self-made parts",
			SourceForm:  "production-receipt",
			MTOField:    "mto_c",
			Columns:     []string{"prod_instock_must_qty", "prod_instock_real_qty", "pick_actual_qty"},
		},
		{
			ID:          "purchased",
			Pattern:     `^03\.`,
			DisplayName: "Purchased parts",
			SourceForm:  "purchase-order",
			MTOField:    "mto_c",
			Columns:     []string{"purchase_order_qty", "purchase_stock_in_qty", "pick_actual_qty"},
		},
	}
}

// SetDefaults registers the default value for every recognised key on viper.
// cmd/mtogate calls this once before Load.
func SetDefaults() {
	viper.SetDefault("db_path", "mtogate.db")
	viper.SetDefault("progress_path", "sync_progress.json")
	viper.SetDefault("listen_port", 8080)

	viper.SetDefault("upstream.lcid", 2052)
	viper.SetDefault("upstream.connect_timeout", 10)
	viper.SetDefault("upstream.request_timeout", 60)
	viper.SetDefault("upstream.page_size", 2000)

	viper.SetDefault("sync.auto_sync.enabled", true)
	viper.SetDefault("sync.auto_sync.schedule", []string{"07:00", "12:00", "16:00", "18:00"})
	viper.SetDefault("sync.auto_sync.days_back", 90)

	viper.SetDefault("sync.manual_sync.default_days", 90)
	viper.SetDefault("sync.manual_sync.min_days", 1)
	viper.SetDefault("sync.manual_sync.max_days", 365)

	viper.SetDefault("sync.performance.chunk_days", 7)
	viper.SetDefault("sync.performance.batch_size", 500)
	viper.SetDefault("sync.performance.parallel_chunks", 2)
	viper.SetDefault("sync.performance.retry_count", 3)

	viper.SetDefault("memory_cache.max_size", 200)
	viper.SetDefault("memory_cache.ttl_seconds", 300)
	viper.SetDefault("persistent_freshness_seconds", 3600)
}
