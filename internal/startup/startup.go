package startup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/pelletier/go-toml/v2"

	"media-ingest/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	VideoPaths   []string
	ImagePaths   []string
	ExcludeFiles []string

	UsePolling   bool
	PollInterval time.Duration
	SettleDelay  time.Duration

	ReadImagesOnImport              bool
	ReadDimensionsBeforeInitialScan bool
	GeneratePreviews                bool

	ScanInterval     time.Duration
	CheckMissing     bool
	TranscodeTimeout time.Duration
	TranscodeArgs    []string

	DataDir          string
	MetricsPort      string
	MetricsEnabled   bool
	LogHealthChecks  bool
	MemoryLimitBytes int64

	// Derived paths
	DatabasePath string
	IndexPath    string
	PreviewDir   string
	LockPath     string

	// ConfigFile is the TOML file that was applied, or "".
	ConfigFile string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		PollInterval:       10 * time.Second,
		SettleDelay:        2 * time.Second,
		ReadImagesOnImport: true,
		ScanInterval:       2 * time.Hour,
		CheckMissing:       true,
		TranscodeTimeout:   2 * time.Hour,
		DataDir:            "/data",
		MetricsPort:        "9090",
		MetricsEnabled:     true,
		LogHealthChecks:    false,
	}
}

// fileConfig mirrors Config for the TOML overlay. Pointers distinguish an
// unset key from a zero value.
type fileConfig struct {
	Library struct {
		VideoPaths []string `toml:"video_paths"`
		ImagePaths []string `toml:"image_paths"`
		Exclude    []string `toml:"exclude"`
	} `toml:"library"`
	Watch struct {
		UsePolling   *bool  `toml:"use_polling"`
		PollInterval string `toml:"poll_interval"`
		SettleDelay  string `toml:"settle_delay"`
	} `toml:"watch"`
	Import struct {
		ReadImages                      *bool `toml:"read_images"`
		ReadDimensionsBeforeInitialScan *bool `toml:"read_dimensions_before_initial_scan"`
		GeneratePreviews                *bool `toml:"generate_previews"`
	} `toml:"import"`
	Scan struct {
		Interval     string `toml:"interval"`
		CheckMissing *bool  `toml:"check_missing"`
	} `toml:"scan"`
	Transcode struct {
		Timeout string   `toml:"timeout"`
		Args    []string `toml:"args"`
	} `toml:"transcode"`
	Server struct {
		DataDir         string `toml:"data_dir"`
		MetricsPort     string `toml:"metrics_port"`
		MetricsEnabled  *bool  `toml:"metrics_enabled"`
		LogHealthChecks *bool  `toml:"log_health_checks"`
		MemoryLimit     string `toml:"memory_limit"`
	} `toml:"server"`
	Logging struct {
		Level string `toml:"level"`
	} `toml:"logging"`
}

// LoadConfig prints the banner and loads configuration from path, or from
// CONFIG_FILE when path is empty, and the environment.
func LoadConfig(path string) (*Config, error) {
	printBanner()
	logSystemInfo()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	return Load(path)
}

// Load builds the configuration: defaults, then the TOML file at path (if
// any), then environment variables. Directories are resolved and the data
// directory is created.
func Load(path string) (*Config, error) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg := Defaults()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
		logging.Info("  CONFIG_FILE:         %s", path)
	}

	applyEnv(&cfg)

	logging.Info("  VIDEO_PATHS:         %s", strings.Join(cfg.VideoPaths, ", "))
	logging.Info("  IMAGE_PATHS:         %s", strings.Join(cfg.ImagePaths, ", "))
	logging.Info("  EXCLUDE_FILES:       %d patterns", len(cfg.ExcludeFiles))
	logging.Info("  WATCH_USE_POLLING:   %v", cfg.UsePolling)
	logging.Info("  WATCH_POLLING_INTERVAL: %v", cfg.PollInterval)
	logging.Info("  READ_IMAGES_ON_IMPORT: %v", cfg.ReadImagesOnImport)
	logging.Info("  READ_IMAGE_DIMENSIONS_BEFORE_INITIAL_SCAN: %v", cfg.ReadDimensionsBeforeInitialScan)
	logging.Info("  GENERATE_PREVIEWS:   %v", cfg.GeneratePreviews)
	logging.Info("  SCAN_INTERVAL:       %v", cfg.ScanInterval)
	logging.Info("  CHECK_MISSING:       %v", cfg.CheckMissing)
	logging.Info("  TRANSCODE_TIMEOUT:   %v", cfg.TranscodeTimeout)
	logging.Info("  DATA_DIR:            %s", cfg.DataDir)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	if cfg.MemoryLimitBytes > 0 {
		logging.Info("  MEMORY_LIMIT:        %s", humanize.IBytes(uint64(cfg.MemoryLimitBytes)))
	}

	if len(cfg.VideoPaths) == 0 && len(cfg.ImagePaths) == 0 {
		logging.Warn("  No library roots configured; nothing will be imported")
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	if cfg.VideoPaths, err = absAll(cfg.VideoPaths); err != nil {
		return nil, fmt.Errorf("failed to resolve video path: %w", err)
	}
	if cfg.ImagePaths, err = absAll(cfg.ImagePaths); err != nil {
		return nil, fmt.Errorf("failed to resolve image path: %w", err)
	}
	for _, root := range append(append([]string{}, cfg.VideoPaths...), cfg.ImagePaths...) {
		if err := checkRoot(root); err != nil {
			// Roots may be mounted later; the scanner skips them until then.
			logging.Warn("  Library root issue: %v", err)
		}
	}

	cfg.DataDir, err = filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	logging.Info("  Data directory (absolute): %s", cfg.DataDir)

	cfg.DatabasePath = filepath.Join(cfg.DataDir, "catalog.db")
	cfg.IndexPath = filepath.Join(cfg.DataDir, "search.bleve")
	cfg.PreviewDir = filepath.Join(cfg.DataDir, "previews")
	cfg.LockPath = filepath.Join(cfg.DataDir, "ingestd.lock")

	if err := ensureDirectory(cfg.DataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}

	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("data directory is not writable (required for the catalog): %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	if cfg.GeneratePreviews {
		cfg.GeneratePreviews = setupOptionalDir(cfg.PreviewDir, "previews")
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Catalog:     ENABLED (required)")
	logging.Info("    Previews:    %s", enabledString(cfg.GeneratePreviews))
	logging.Info("    Polling:     %s", enabledString(cfg.UsePolling))
	logging.Info("    Metrics:     %s", enabledString(cfg.MetricsEnabled))

	return &cfg, nil
}

func applyFile(cfg *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var fc fileConfig
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if fc.Library.VideoPaths != nil {
		cfg.VideoPaths = fc.Library.VideoPaths
	}
	if fc.Library.ImagePaths != nil {
		cfg.ImagePaths = fc.Library.ImagePaths
	}
	if fc.Library.Exclude != nil {
		cfg.ExcludeFiles = fc.Library.Exclude
	}

	setBool(&cfg.UsePolling, fc.Watch.UsePolling)
	setBool(&cfg.ReadImagesOnImport, fc.Import.ReadImages)
	setBool(&cfg.ReadDimensionsBeforeInitialScan, fc.Import.ReadDimensionsBeforeInitialScan)
	setBool(&cfg.GeneratePreviews, fc.Import.GeneratePreviews)
	setBool(&cfg.CheckMissing, fc.Scan.CheckMissing)
	setBool(&cfg.MetricsEnabled, fc.Server.MetricsEnabled)
	setBool(&cfg.LogHealthChecks, fc.Server.LogHealthChecks)

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"watch.poll_interval", fc.Watch.PollInterval, &cfg.PollInterval},
		{"watch.settle_delay", fc.Watch.SettleDelay, &cfg.SettleDelay},
		{"scan.interval", fc.Scan.Interval, &cfg.ScanInterval},
		{"transcode.timeout", fc.Transcode.Timeout, &cfg.TranscodeTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, d.value, err)
		}
		*d.dst = parsed
	}

	if fc.Transcode.Args != nil {
		cfg.TranscodeArgs = fc.Transcode.Args
	}
	if fc.Server.DataDir != "" {
		cfg.DataDir = fc.Server.DataDir
	}
	if fc.Server.MetricsPort != "" {
		cfg.MetricsPort = fc.Server.MetricsPort
	}
	if fc.Server.MemoryLimit != "" {
		n, err := humanize.ParseBytes(fc.Server.MemoryLimit)
		if err != nil {
			return fmt.Errorf("invalid server.memory_limit %q: %w", fc.Server.MemoryLimit, err)
		}
		cfg.MemoryLimitBytes = int64(n)
	}
	if fc.Logging.Level != "" {
		if level, ok := logging.ParseLevel(fc.Logging.Level); ok {
			logging.SetLevel(level)
		} else {
			logging.Warn("  Invalid logging.level %q, keeping %s", fc.Logging.Level, logging.GetLevel())
		}
	}
	return nil
}

// applyEnv overlays environment variables. Invalid values keep the current
// setting and log a warning.
func applyEnv(cfg *Config) {
	cfg.VideoPaths = getEnvList("VIDEO_PATHS", cfg.VideoPaths)
	cfg.ImagePaths = getEnvList("IMAGE_PATHS", cfg.ImagePaths)
	cfg.ExcludeFiles = getEnvList("EXCLUDE_FILES", cfg.ExcludeFiles)

	cfg.UsePolling = getEnvBool("WATCH_USE_POLLING", cfg.UsePolling)
	cfg.PollInterval = getEnvDuration("WATCH_POLLING_INTERVAL", cfg.PollInterval)
	cfg.SettleDelay = getEnvDuration("WATCH_SETTLE_DELAY", cfg.SettleDelay)
	cfg.ReadImagesOnImport = getEnvBool("READ_IMAGES_ON_IMPORT", cfg.ReadImagesOnImport)
	cfg.ReadDimensionsBeforeInitialScan = getEnvBool("READ_IMAGE_DIMENSIONS_BEFORE_INITIAL_SCAN", cfg.ReadDimensionsBeforeInitialScan)
	cfg.GeneratePreviews = getEnvBool("GENERATE_PREVIEWS", cfg.GeneratePreviews)
	cfg.ScanInterval = getEnvDuration("SCAN_INTERVAL", cfg.ScanInterval)
	cfg.CheckMissing = getEnvBool("CHECK_MISSING", cfg.CheckMissing)
	cfg.TranscodeTimeout = getEnvDuration("TRANSCODE_TIMEOUT", cfg.TranscodeTimeout)
	if args := strings.Fields(os.Getenv("TRANSCODE_ARGS")); len(args) > 0 {
		cfg.TranscodeArgs = args
	}

	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.MetricsPort = getEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", cfg.LogHealthChecks)

	if v := os.Getenv("MEMORY_LIMIT"); v != "" {
		if n, err := humanize.ParseBytes(v); err == nil {
			cfg.MemoryLimitBytes = int64(n)
		} else {
			logging.Warn("Invalid MEMORY_LIMIT %q, ignoring", v)
		}
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func absAll(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

func checkRoot(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	logging.Info("  [OK] %s", path)
	return nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs catalog initialization
func LogDatabaseInit(duration time.Duration, path string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CATALOG INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Path: %s", path)
	logging.Info("  [OK] Catalog opened in %v", duration)
}

// LogSearchInit logs search index initialization. countErr is the error
// from reading the document count, if any; the index is still usable.
func LogSearchInit(duration time.Duration, docs uint64, countErr error) {
	if countErr != nil {
		logging.Info("  [OK] Search index opened in %v", duration)
		logging.Warn("  Cannot count search documents: %v", countErr)
		return
	}
	logging.Info("  [OK] Search index opened in %v (%s documents)", duration, humanize.Comma(int64(docs)))
}

// LogTranscoderInit logs transcoder initialization and checks FFmpeg. It
// reports whether ffmpeg and ffprobe are usable.
func LogTranscoderInit() bool {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if err := checkFFmpeg(); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Videos will fail to import until ffmpeg and ffprobe are installed")
		return false
	}
	logging.Info("  [OK] FFmpeg is available")
	return true
}

// LogPipelineInit logs the import pipeline configuration
func LogPipelineInit(cfg *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PIPELINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Video roots:   %d", len(cfg.VideoPaths))
	logging.Info("  Image roots:   %d", len(cfg.ImagePaths))
	if cfg.UsePolling {
		logging.Info("  Watch mode:    polling every %v", cfg.PollInterval)
	} else {
		logging.Info("  Watch mode:    notifications (settle %v)", cfg.SettleDelay)
	}
	if cfg.ScanInterval > 0 {
		logging.Info("  Scan interval: %v", cfg.ScanInterval)
	} else {
		logging.Info("  Scan interval: disabled (startup scan only)")
	}
	logging.Info("  Starting pipeline...")
}

// LogPipelineStarted logs successful pipeline start
func LogPipelineStarted() {
	logging.Info("  [OK] Pipeline started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if !logging.IsDebugEnabled() {
		return
	}

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}

	groups := make(map[string][]RouteInfo)
	for _, route := range routes {
		prefix := getRouteGroup(route.Path)
		groups[prefix] = append(groups[prefix], route)
	}

	groupKeys := make([]string, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}
	sort.Strings(groupKeys)

	logging.Debug("  Registered routes (%d total):", len(routes))
	for _, group := range groupKeys {
		if group != "" {
			logging.Debug("  [%s]", group)
		} else {
			logging.Debug("  [root]")
		}
		for _, route := range groups[group] {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful start with endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Status:        http://0.0.0.0:%s/api/status", config.MetricsPort)
	logging.Info("    Health:        http://0.0.0.0:%s/healthz", config.MetricsPort)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___         ____                      __
   /  |/  /__  ____/ (_)___ _  /  _/___  ____ ____  _____/ /_
  / /|_/ / _ \/ __  / / __ '/  / // __ \/ __ '/ _ \/ ___/ __/
 / /  / /  __/ /_/ / / /_/ / _/ // / / / /_/ /  __(__  ) /_
/_/  /_/\___/\__,_/_/\__,_/ /___/_/ /_/\__, /\___/____/\__/
                                      /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg() error {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		path, err := exec.LookPath(bin)
		if err != nil {
			return fmt.Errorf("%s not found in PATH", bin)
		}
		logging.Debug("  %s path: %s", bin, path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffmpeg", "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	if line, _, _ := strings.Cut(string(output), "\n"); line != "" {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(line))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvList splits a comma separated list, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
