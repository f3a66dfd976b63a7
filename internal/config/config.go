package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"quadra/internal/models"
	"quadra/internal/schedule"
)

// Backend names for the booking store.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Store struct {
		Backend   string `yaml:"backend"` // sqlite | file
		Path      string `yaml:"path"`
		AgendaDir string `yaml:"agenda_dir"`
	} `yaml:"store"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Session struct {
		TTLMinutes int `yaml:"ttl_minutes"`
	} `yaml:"session"`

	Lock struct {
		WaitTimeoutSeconds int `yaml:"wait_timeout_seconds"`
		MaxPending         int `yaml:"max_pending"`
	} `yaml:"lock"`

	Booking struct {
		DaysAhead int `yaml:"days_ahead"`
	} `yaml:"booking"`

	Units []UnitConfig `yaml:"units"`

	Notifications struct {
		Chats             []int64 `yaml:"chats"`
		MessagesPerSecond float64 `yaml:"messages_per_second"`
	} `yaml:"notifications"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Retention struct {
		Enabled       bool `yaml:"enabled"`
		Days          int  `yaml:"days"`
		IntervalHours int  `yaml:"interval_hours"`
	} `yaml:"retention"`

	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`

	Managers []int64 `yaml:"managers"`
}

// UnitConfig describes one academy unit and its weekly time catalog.
type UnitConfig struct {
	ID         string          `yaml:"id"`
	Name       string          `yaml:"name"`
	Capacity   int             `yaml:"capacity"` // 0 = unconstrained
	Companions bool            `yaml:"companions"`
	Schedule   []ScheduleBlock `yaml:"schedule"`
}

// ScheduleBlock maps a weekday group to its slot starts.
type ScheduleBlock struct {
	Days  []int    `yaml:"days"`  // 1=Mon .. 7=Sun
	Times []string `yaml:"times"` // HH:MM
}

// Load reads the yaml config at path (default configs/config.yaml),
// expands ${ENV_VAR} placeholders and applies defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	switch c.Store.Backend {
	case "":
		c.Store.Backend = BackendSQLite
	case BackendSQLite, BackendFile:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendSQLite, BackendFile, c.Store.Backend)
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/quadra.db"
	}
	if c.Store.AgendaDir == "" {
		c.Store.AgendaDir = "data/agendas"
	}
	if err := os.MkdirAll(filepath.Dir(c.Store.Path), 0o755); err != nil {
		return err
	}

	if c.Session.TTLMinutes <= 0 {
		c.Session.TTLMinutes = 30
	}
	if c.Booking.DaysAhead <= 0 {
		c.Booking.DaysAhead = 5
	}
	if c.Retention.Days <= 0 {
		c.Retention.Days = 90
	}
	if c.Retention.IntervalHours <= 0 {
		c.Retention.IntervalHours = 24
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "exports"
	}
	return nil
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

func (c *Config) LockWaitTimeout() time.Duration {
	if c.Lock.WaitTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Lock.WaitTimeoutSeconds) * time.Second
}

func (c *Config) RetentionInterval() time.Duration {
	return time.Duration(c.Retention.IntervalHours) * time.Hour
}

// Catalog converts the configured units into the schedule catalog,
// falling back to the compiled-in defaults when no units are set.
func (c *Config) Catalog() ([]schedule.UnitSchedule, error) {
	if len(c.Units) == 0 {
		return schedule.DefaultCatalog(), nil
	}

	seen := make(map[models.Unit]bool)
	catalog := make([]schedule.UnitSchedule, 0, len(c.Units))
	for i, uc := range c.Units {
		unit, err := models.ParseUnit(uc.ID)
		if err != nil {
			return nil, fmt.Errorf("units[%d]: %w", i, err)
		}
		if seen[unit] {
			return nil, fmt.Errorf("units[%d]: duplicate unit %s", i, unit)
		}
		seen[unit] = true

		name := uc.Name
		if name == "" {
			name = "Unidade " + uc.ID
		}

		times := make(map[time.Weekday][]string)
		for j, block := range uc.Schedule {
			for _, d := range block.Days {
				if d < 1 || d > 7 {
					return nil, fmt.Errorf("units[%d].schedule[%d]: invalid day %d, must be 1-7 (1=Mon)", i, j, d)
				}
			}
			for _, t := range block.Times {
				if !models.ValidTime(t) {
					return nil, fmt.Errorf("units[%d].schedule[%d]: invalid time %q, expected HH:MM", i, j, t)
				}
			}
			for _, d := range block.Days {
				weekday := time.Weekday(d % 7) // 7 (Sun) wraps to time.Sunday
				times[weekday] = append(times[weekday], block.Times...)
			}
		}

		catalog = append(catalog, schedule.UnitSchedule{
			ID:         unit,
			Name:       name,
			Capacity:   uc.Capacity,
			Companions: uc.Companions,
			Times:      times,
		})
	}
	return catalog, nil
}
