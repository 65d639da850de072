package config

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/example/visa-rescheduler/internal/appointment"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config carries everything the bot reads from the environment. Dates and the
// dry-run flag come from CLI flags instead, since they change between runs.
type Config struct {
	Email       string       `envconfig:"EMAIL" validate:"required,email"`
	Password    string       `envconfig:"PASSWORD" validate:"required"`
	ScheduleID  string       `envconfig:"SCHEDULE_ID" validate:"required"`
	Facilities  FacilityList `envconfig:"FACILITY_ID" validate:"required,min=1"`
	CountryCode string       `envconfig:"COUNTRY_CODE" validate:"required"`

	RefreshDelaySec int  `envconfig:"REFRESH_DELAY" default:"3" validate:"min=1"`
	CooldownSec     int  `envconfig:"COOLDOWN" default:"3600" validate:"min=1"`
	KeepPolling     bool `envconfig:"KEEP_POLLING" default:"true"`

	DatabaseURL  string `envconfig:"DATABASE_URL"`
	ResultFile   string `envconfig:"RESULT_FILE" default:"data/bookings.json"`
	SnapshotFile string `envconfig:"SNAPSHOT_FILE" default:"data/shutdown-snapshot.json"`

	HealthAddr string `envconfig:"HEALTH_ADDR"`
	Port       string `envconfig:"PORT"`
}

func (c Config) RefreshDelay() time.Duration {
	return time.Duration(c.RefreshDelaySec) * time.Second
}

func (c Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSec) * time.Second
}

// FromEnv loads a .env file when present (never overriding the real
// environment), then populates and validates the config.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	// Hosting platforms hand us PORT; treat it as the health listen address
	// unless one was set explicitly.
	if cfg.HealthAddr == "" && cfg.Port != "" {
		cfg.HealthAddr = ":" + cfg.Port
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FacilityList parses FACILITY_ID, which operators supply in several formats:
// a JSON array (["89","90"]), comma/semicolon/space separated values
// ("89,90", "89 90", "89;90"), or a single value.
type FacilityList []appointment.FacilityID

var facilitySeparators = regexp.MustCompile(`[;,\s]+`)

// Decode implements envconfig.Decoder.
func (f *FacilityList) Decode(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("empty facility list")
	}

	if strings.HasPrefix(trimmed, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			*f = facilityIDs(arr)
			if len(*f) == 0 {
				return fmt.Errorf("empty facility list")
			}
			return nil
		}
		// Not valid JSON; fall through to separator parsing without brackets.
		trimmed = strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]")
	}

	*f = facilityIDs(facilitySeparators.Split(trimmed, -1))
	if len(*f) == 0 {
		return fmt.Errorf("empty facility list")
	}
	return nil
}

func facilityIDs(parts []string) FacilityList {
	var out FacilityList
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, appointment.FacilityID(p))
	}
	return out
}
