package config // package config loads application configuration from environment variables

import (
    "errors"
    "fmt"
    "io/fs"
    "os"
    "strings"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env          string   // application environment (e.g. "dev", "prod")
    Port         string   // HTTP port to listen on
    DBUser       string   // database username
    DBPass       string   // database password (optional)
    DBHost       string   // database host address
    DBPort       string   // database port number
    DBName       string   // database name
    JWTSecret    string   // secret used to verify and mint JWTs
    AccessTTLMin int      // lifetime of tokens minted by the CLI, in minutes
    SlotLabels   []string // ordered slot catalog; empty means the built-in default
    HorizonDays  int      // booking horizon from today; 0 keeps only the weekday rule
    AutoMigrate  bool     // apply migrations when the server starts
}

// LoadDotenv reads .env files into the process environment without
// overriding variables that are already set.  Missing files are ignored.
func LoadDotenv(files ...string) error {
    if len(files) == 0 {
        files = []string{".env"}
    }
    for _, f := range files {
        if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
            return fmt.Errorf("load %s: %w", f, err)
        }
    }
    return nil
}

// Load reads configuration values from the environment, after loading an
// optional .env file.  Every missing required variable is reported in the
// returned error.
func Load() (Config, error) {
    if err := LoadDotenv(); err != nil {
        return Config{}, err
    }
    var missing []string
    must := func(key string) string {
        v, ok := os.LookupEnv(key)
        if !ok || v == "" {
            missing = append(missing, key)
        }
        return v
    }
    cfg := Config{
        Env:          envStr("APP_ENV", "dev"),
        Port:         envStr("APP_PORT", "8080"),
        DBUser:       must("DB_USER"),
        DBPass:       os.Getenv("DB_PASS"),
        DBHost:       must("DB_HOST"),
        DBPort:       envStr("DB_PORT", "3306"),
        DBName:       must("DB_NAME"),
        JWTSecret:    must("JWT_SECRET"),
        AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),
        SlotLabels:   splitList(os.Getenv("SLOT_CATALOG")),
        HorizonDays:  envInt("BOOKING_HORIZON_DAYS", 14),
        AutoMigrate:  envBool("AUTO_MIGRATE", false),
    }
    if len(missing) > 0 {
        return cfg, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
    }
    if cfg.HorizonDays < 0 {
        return cfg, fmt.Errorf("invalid BOOKING_HORIZON_DAYS: %d", cfg.HorizonDays)
    }
    if cfg.AccessTTLMin <= 0 {
        cfg.AccessTTLMin = 60
    }
    return cfg, nil
}

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
