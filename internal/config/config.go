// Package config loads service configuration from a YAML file with
// environment overrides.
package config

import (
    "os"
    "strconv"

    yaml "gopkg.in/yaml.v3"
)

type Config struct {
    Port        string  `yaml:"port"`
    DatabaseURL string  `yaml:"databaseUrl"`
    RedisURL    string  `yaml:"redisUrl"`
    RateRPS     float64 `yaml:"rateRps"`
    RateBurst   int     `yaml:"rateBurst"`

    Solver SolverDefaults `yaml:"solver"`
}

// SolverDefaults apply when a solve request omits the option.
type SolverDefaults struct {
    Restarts     int     `yaml:"restarts"`
    Workers      int     `yaml:"workers"`
    TimeBudgetMs int     `yaml:"timeBudgetMs"`
    SpeedMPH     float64 `yaml:"speedMph"`
}

// Load reads the file named by CONFIG_FILE (if set), then applies env
// overrides. A missing file is not an error; env alone is enough for dev.
func Load() (Config, error) {
    cfg := Config{Port: "8080", RateRPS: 5, RateBurst: 10}
    if path := os.Getenv("CONFIG_FILE"); path != "" {
        data, err := os.ReadFile(path)
        if err != nil { return cfg, err }
        if err := yaml.Unmarshal(data, &cfg); err != nil { return cfg, err }
    }
    if v := os.Getenv("PORT"); v != "" { cfg.Port = v }
    if v := os.Getenv("DATABASE_URL"); v != "" { cfg.DatabaseURL = v }
    if v := os.Getenv("REDIS_URL"); v != "" { cfg.RedisURL = v }
    if v := os.Getenv("RATE_RPS"); v != "" { if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 { cfg.RateRPS = f } }
    if v := os.Getenv("RATE_BURST"); v != "" { if n, err := strconv.Atoi(v); err == nil && n > 0 { cfg.RateBurst = n } }
    return cfg, nil
}
