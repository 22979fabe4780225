package bot

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScheduleConfig defines the daily automatic settlement trigger.
type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	DailyAt string `yaml:"daily_at"`
}

// Config defines bot behavior.
type Config struct {
	Timezone       string         `yaml:"timezone"`
	ComboSurcharge float64        `yaml:"combo_surcharge"`
	Drinks         []string       `yaml:"drinks"`
	MenuDaysAhead  int            `yaml:"menu_days_ahead"`
	Schedule       ScheduleConfig `yaml:"schedule"`
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		Timezone:       getenvDefault("BOT_TIMEZONE", "Asia/Taipei"),
		ComboSurcharge: getenvFloatDefault("BOT_COMBO_SURCHARGE", 15),
		MenuDaysAhead:  5,
	}

	if path := os.Getenv("BOT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if len(cfg.Drinks) == 0 {
		cfg.Drinks = splitCSV(getenvDefault("BOT_DRINKS", "black tea,green tea,milk tea"))
	}
	if cfg.Schedule.DailyAt == "" {
		cfg.Schedule.DailyAt = getenvDefault("BOT_SETTLE_AT", "09:05")
	}
	if cfg.MenuDaysAhead <= 0 {
		cfg.MenuDaysAhead = 5
	}
	if cfg.ComboSurcharge < 0 {
		return cfg, errors.New("bot: negative combo surcharge")
	}
	return cfg, nil
}

// DrinkAllowed reports whether a drink name is on the configured list.
func (c Config) DrinkAllowed(name string) bool {
	for _, drink := range c.Drinks {
		if drink == name {
			return true
		}
	}
	return false
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
