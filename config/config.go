// Package config loads the simulation configuration: a YAML file when one is
// present, built-in defaults otherwise, with LIFTSIM_* environment variables
// overriding either.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-yaml/yaml"
)

const (
	DEFAULT_FLOORS   = 5
	DEFAULT_CARS     = 2
	DEFAULT_CAPACITY = 4
	DEFAULT_TICK_MS  = 1
)

// RideSpec is one scripted rider journey.
type RideSpec struct {
	Name string `yaml:"name"`
	From int    `yaml:"from"`
	To   int    `yaml:"to"`
}

type Config struct {
	Floors    int        `yaml:"floors"`
	Cars      int        `yaml:"cars"`
	Capacity  int        `yaml:"capacity"`
	TickMs    int        `yaml:"tick_ms"`
	PanelAddr string     `yaml:"panel_addr"`
	LogLevel  string     `yaml:"log_level"`
	Riders    []RideSpec `yaml:"riders"`
}

func Default() Config {
	return Config{
		Floors:   DEFAULT_FLOORS,
		Cars:     DEFAULT_CARS,
		Capacity: DEFAULT_CAPACITY,
		TickMs:   DEFAULT_TICK_MS,
		LogLevel: "info",
	}
}

// Load reads path, falling back to defaults when the file does not exist.
// Environment overrides apply in both cases.
func Load(path string) (Config, error) {
	c := Default()

	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&c); err != nil {
			return c, fmt.Errorf("config: decoding %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return c, fmt.Errorf("config: opening %s: %w", path, err)
	}

	c.FromEnv()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// FromEnv overrides fields from LIFTSIM_* variables. Unset or malformed
// numeric variables leave the field alone.
func (c *Config) FromEnv() {
	envInt("LIFTSIM_FLOORS", &c.Floors)
	envInt("LIFTSIM_CARS", &c.Cars)
	envInt("LIFTSIM_CAPACITY", &c.Capacity)
	envInt("LIFTSIM_TICK_MS", &c.TickMs)
	if v := os.Getenv("LIFTSIM_PANEL_ADDR"); v != "" {
		c.PanelAddr = v
	}
	if v := os.Getenv("LIFTSIM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) Validate() error {
	if c.Floors < 2 {
		return fmt.Errorf("config: floors must be at least 2, got %d", c.Floors)
	}
	if c.Cars < 1 {
		return fmt.Errorf("config: cars must be at least 1, got %d", c.Cars)
	}
	if c.Capacity < 1 {
		return fmt.Errorf("config: capacity must be at least 1, got %d", c.Capacity)
	}
	if c.TickMs < 0 {
		return fmt.Errorf("config: tick_ms must not be negative, got %d", c.TickMs)
	}
	for _, r := range c.Riders {
		if r.From < 1 || r.From > c.Floors || r.To < 1 || r.To > c.Floors {
			return fmt.Errorf("config: rider %q travels %d -> %d outside floors 1..%d",
				r.Name, r.From, r.To, c.Floors)
		}
		if r.From == r.To {
			return fmt.Errorf("config: rider %q travels %d -> %d, going nowhere", r.Name, r.From, r.To)
		}
	}
	return nil
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}
