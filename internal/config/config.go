package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/evanschultz/quadro/internal/domain"
)

type Config struct {
	Database DatabaseConfig    `toml:"database"`
	Logging  LoggingConfig     `toml:"logging"`
	Board    BoardConfig       `toml:"board"`
	Drag     DragConfig        `toml:"drag"`
	Cache    CacheConfig       `toml:"cache"`
	Server   ServerConfig      `toml:"server"`
	Keys     KeyConfig         `toml:"keys"`
	Profiles map[string]string `toml:"profiles"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type BoardConfig struct {
	Lanes           []LaneConfig `toml:"lanes"`
	ShowWIPWarnings bool         `toml:"show_wip_warnings"`
}

type LaneConfig struct {
	Status   string `toml:"status"`
	Name     string `toml:"name"`
	WIPLimit int    `toml:"wip_limit"`
}

// DragConfig holds gesture activation thresholds. Distances are in cells.
type DragConfig struct {
	PointerMinDistance int `toml:"pointer_min_distance"`
	TouchLongPressMS   int `toml:"touch_long_press_ms"`
	TouchTolerance     int `toml:"touch_tolerance"`
}

// TouchLongPress returns the long-press threshold as a duration.
func (d DragConfig) TouchLongPress() time.Duration {
	return time.Duration(d.TouchLongPressMS) * time.Millisecond
}

// CacheConfig enables the Redis read-through cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr  string `toml:"redis_addr"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type KeyConfig struct {
	NewTask  string `toml:"new_task"`
	TaskInfo string `toml:"task_info"`
	Fetch    string `toml:"fetch"`
	Activity string `toml:"activity"`
	CopyID   string `toml:"copy_id"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

func defaultLanes() []LaneConfig {
	return []LaneConfig{
		{Status: string(domain.StatusTodo), Name: "To Do"},
		{Status: string(domain.StatusInProgress), Name: "In Progress"},
		{Status: string(domain.StatusInReview), Name: "In Review"},
		{Status: string(domain.StatusDone), Name: "Done"},
	}
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: false,
				Dir:     ".quadro/log",
			},
		},
		Board: BoardConfig{
			Lanes:           defaultLanes(),
			ShowWIPWarnings: true,
		},
		Drag: DragConfig{
			PointerMinDistance: 1,
			TouchLongPressMS:   250,
			TouchTolerance:     5,
		},
		Cache: CacheConfig{
			TTLSeconds: 30,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Keys: KeyConfig{
			NewTask:  "n",
			TaskInfo: "i",
			Fetch:    "r",
			Activity: "a",
			CopyID:   "y",
		},
		Profiles: map[string]string{},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	level := strings.TrimSpace(strings.ToLower(c.Logging.Level))
	if level != "" && !slices.Contains(validLogLevels, level) {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when enabled")
	}

	if len(c.Board.Lanes) == 0 {
		return errors.New("board.lanes must include at least one lane")
	}
	seenStatus := map[domain.Status]struct{}{}
	for idx, lane := range c.Board.Lanes {
		status, err := domain.ParseStatus(lane.Status)
		if err != nil {
			return fmt.Errorf("board.lanes[%d].status is invalid: %q", idx, lane.Status)
		}
		if strings.TrimSpace(lane.Name) == "" {
			return fmt.Errorf("board.lanes[%d].name is required", idx)
		}
		if lane.WIPLimit < 0 {
			return fmt.Errorf("board.lanes[%d].wip_limit must be >= 0", idx)
		}
		if _, ok := seenStatus[status]; ok {
			return fmt.Errorf("board.lanes[%d].status is duplicated: %s", idx, status)
		}
		seenStatus[status] = struct{}{}
	}

	if c.Drag.PointerMinDistance < 0 {
		return errors.New("drag.pointer_min_distance must be >= 0")
	}
	if c.Drag.TouchLongPressMS < 0 {
		return errors.New("drag.touch_long_press_ms must be >= 0")
	}
	if c.Drag.TouchTolerance < 0 {
		return errors.New("drag.touch_tolerance must be >= 0")
	}
	if c.Cache.TTLSeconds < 0 {
		return errors.New("cache.ttl_seconds must be >= 0")
	}

	for key, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("%s must start with /: %q", key, endpoint)
		}
	}
	seenKeys := map[string]string{}
	for name, raw := range map[string]string{
		"keys.new_task":  c.Keys.NewTask,
		"keys.task_info": c.Keys.TaskInfo,
		"keys.fetch":     c.Keys.Fetch,
		"keys.activity":  c.Keys.Activity,
		"keys.copy_id":   c.Keys.CopyID,
	} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if other, ok := seenKeys[raw]; ok {
			return fmt.Errorf("%s duplicates %s: %q", name, other, raw)
		}
		seenKeys[raw] = name
	}
	for userID := range c.Profiles {
		if strings.TrimSpace(userID) == "" {
			return errors.New("profiles keys must be non-empty user ids")
		}
	}

	return nil
}

// BoardLanes returns the configured lanes with statuses normalized.
// Call after Validate.
func (c Config) BoardLanes() []LaneConfig {
	out := make([]LaneConfig, 0, len(c.Board.Lanes))
	for _, lane := range c.Board.Lanes {
		status, err := domain.ParseStatus(lane.Status)
		if err != nil {
			continue
		}
		lane.Status = string(status)
		lane.Name = strings.TrimSpace(lane.Name)
		out = append(out, lane)
	}
	return out
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
