// Package platform resolves where quadro keeps its config, database, and
// snapshot exports on each operating system.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DefaultAppName names the config and data directories.
const DefaultAppName = "quadro"

// devSuffix keeps development runs in their own directories.
const devSuffix = "-dev"

// Paths lists where quadro keeps its files.
//
// ConfigPath is the TOML file read at startup. DBPath is the sqlite file the
// task store persists through. ExportDir receives snapshots written by
// `quadro export --out auto`.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	ExportDir  string
}

// SnapshotPath names a timestamped snapshot file in ExportDir. ext is the
// snapshot format ("json" or "yaml").
func (p Paths) SnapshotPath(ext string, at time.Time) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = "json"
	}
	name := "board-" + at.UTC().Format("20060102-150405") + "." + ext
	return filepath.Join(p.ExportDir, name)
}

// Options selects the app directory name. DevMode appends "-dev".
type Options struct {
	AppName string
	DevMode bool
}

// overrides lists, per OS, the environment variables that replace the
// config and data bases. Other systems take no overrides.
var overrides = map[string]struct{ config, data string }{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

// DefaultPaths resolves paths for the default app name.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: DefaultAppName})
}

// DefaultPathsWithOptions resolves paths from the running OS and environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir, err := userDataDir(runtime.GOOS, configDir)
	if err != nil {
		return Paths{}, err
	}

	env := map[string]string{}
	if o, ok := overrides[runtime.GOOS]; ok {
		env[o.config] = os.Getenv(o.config)
		env[o.data] = os.Getenv(o.data)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appDirName(opts))
}

// userDataDir is the platform data base before environment overrides.
// macOS and other systems keep data next to config.
func userDataDir(goos, configDir string) (string, error) {
	switch goos {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("user home dir: %w", err)
		}
		return filepath.Join(home, ".local", "share"), nil
	default:
		return configDir, nil
	}
}

func appDirName(opts Options) string {
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = DefaultAppName
	}
	if opts.DevMode {
		name += devSuffix
	}
	return name
}

// PathsFor computes paths from explicit inputs so every OS branch is testable.
// env holds only the override variables for goos; empty values are ignored.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if o, ok := overrides[goos]; ok {
		if v := strings.TrimSpace(env[o.config]); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(env[o.data]); v != "" {
			dataBase = v
		}
	}

	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		ExportDir:  filepath.Join(dataDir, "exports"),
	}, nil
}
