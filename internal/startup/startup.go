package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"webp-renditions/internal/logging"
	"webp-renditions/internal/memory"
	"webp-renditions/internal/transform"

	"github.com/gorilla/mux"
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

// LogConfig logs the effective configuration. Secrets are not printed.
func LogConfig(cfg *Config, path string) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if path != "" {
		logging.Info("  Config file:         %s", path)
	} else {
		logging.Info("  Config file:         (none, defaults and %s_* environment)", EnvPrefix)
	}
	logging.Info("  Enabled formats:     %s", strings.Join(cfg.Transform.Enabled, ", "))
	logging.Info("  Force overwrite:     %s", strings.Join(cfg.Transform.ForceOverwrite, ", "))
	logging.Info("  Thumb sizes:         %v", cfg.Transform.ThumbSizes)
	logging.Info("  Convert on upload:   %v", cfg.Transform.ConvertOnUpload)
	logging.Info("  Convert on thumb:    %v", cfg.Transform.ConvertOnTransform)
	logging.Info("  Responsive images:   %v (jobs: %v)", cfg.Transform.ResponsiveImages, cfg.Transform.ResponsiveJobs)
	logging.Info("  WebP quality:        %d", cfg.Encoder.WebP.Quality)
	logging.Info("  AVIF quality/speed:  %d/%d", cfg.Encoder.AVIF.Quality, cfg.Encoder.AVIF.Speed)
	logging.Info("  Repository:          %s (hash levels %d)", cfg.Repository.Backend, cfg.Repository.HashLevels)
	logging.Info("  Queue:               %s", cfg.Queue.Path)
	logging.Info("  PORT:                %s", cfg.Server.Port)
	logging.Info("  METRICS_PORT:        %s", cfg.Server.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.Server.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", cfg.Server.LogHealthChecks)
	logging.Info("  Upload watcher:      %s", enabledString(cfg.Watch.Enabled))
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}

// PrepareQueueDir creates the directory holding the job queue database and
// checks it is writable.
func PrepareQueueDir(cfg *Config) error {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if cfg.Queue.Path == ":memory:" {
		logging.Warn("  Job queue is in memory; queued jobs are lost on restart")
		return nil
	}

	path, err := filepath.Abs(cfg.Queue.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve queue path: %w", err)
	}
	cfg.Queue.Path = path
	dir := filepath.Dir(path)
	logging.Info("  Queue directory (absolute): %s", dir)

	if err := ensureDirectory(dir, "queue"); err != nil {
		return fmt.Errorf("queue directory error: %w", err)
	}

	logging.Debug("  Testing queue directory write access...")
	if err := testWriteAccess(dir); err != nil {
		return fmt.Errorf("queue directory is not writable: %w", err)
	}
	logging.Info("  [OK] Queue directory is writable")

	if cfg.Repository.Backend == "local" || cfg.Repository.Backend == "" {
		for name, p := range map[string]string{"public": cfg.Repository.Local.Public, "thumb": cfg.Repository.Local.Thumb} {
			if err := ensureDirectory(p, name); err != nil {
				logging.Warn("  %s zone issue: %v", name, err)
			}
		}
	}
	return nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMemoryConfig logs how the soft memory limit was set.
func LogMemoryConfig(mc memory.ConfigResult) {
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY")
	logging.Info("------------------------------------------------------------")
	switch {
	case !mc.Configured:
		logging.Info("  GOMEMLIMIT: not configured")
	case mc.Source == "GOMEMLIMIT":
		logging.Info("  GOMEMLIMIT: %s (from environment)", memory.FormatBytes(mc.GoMemLimit))
	default:
		logging.Info("  Container limit: %s", memory.FormatBytes(mc.ContainerLimit))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%%)", memory.FormatBytes(mc.GoMemLimit), mc.Ratio*100)
	}
	logging.Info("")
}

// LogEncoderInit logs every format with the availability of its backends.
func LogEncoderInit(factory *transform.Factory) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ENCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	prober := factory.Prober()
	for _, key := range factory.Keys() {
		f, _ := factory.Format(key)
		var parts []string
		for _, s := range prober.Report(f) {
			mark := "-"
			if s.Available {
				mark = "+"
			}
			parts = append(parts, mark+s.Backend)
		}
		if prober.IsFormatSupported(f) {
			logging.Info("  [OK] %-5s %s", f.Key, strings.Join(parts, " "))
		} else {
			logging.Warn("  %-5s no usable backend (%s)", f.Key, strings.Join(parts, " "))
		}
	}
}

// LogQueueInit logs the job queue state after startup recovery.
func LogQueueInit(duration time.Duration, requeued int64, workers int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("JOB QUEUE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Queue opened in %v", duration)
	if requeued > 0 {
		logging.Info("  Requeued %d interrupted jobs", requeued)
	}
	logging.Info("  Workers: %d", workers)
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
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		// Group routes by prefix for cleaner output
		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		// Sort group keys
		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		// Print routes by group
		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set %s_SERVER_LOG_HEALTH_CHECKS=true to enable)", EnvPrefix)
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	// Remove leading slash
	path = strings.TrimPrefix(path, "/")

	// Get first segment
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	// Special handling for API routes
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerInfo holds what the server startup log reports
type ServerInfo struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerInfo) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Local access:")
	logging.Info("    Application:   http://localhost:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
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
func LogFatal(format string, args ...any) {
	logging.Fatal(format, args...)
}

// LogBanner prints the banner, build and system information. Call it once
// before anything else is logged.
func LogBanner() {
	banner := `
------------------------------------------------------------
   webp-renditions
   WebP and AVIF renditions for uploaded images
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
	logSystemInfo()
}

// Helper functions

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

	if name == "public" && logging.IsDebugEnabled() {
		entries, err := os.ReadDir(path)
		if err == nil {
			fileCount := 0
			dirCount := 0
			for _, e := range entries {
				if e.IsDir() {
					dirCount++
				} else {
					fileCount++
				}
			}
			logging.Debug("    Contents: %d files, %d directories (top level)", fileCount, dirCount)
		}
	}

	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}
