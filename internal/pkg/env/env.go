package env

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// Values from the .env file win over the process environment
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetBool treats only "true" (case-insensitive) as set.
func GetBool(key string, def bool) bool {
	raw := strings.TrimSpace(GetEnv(key, ""))
	if raw == "" {
		return def
	}
	return strings.EqualFold(raw, "true")
}

func GetInt(key string, def int) int {
	raw := strings.TrimSpace(GetEnv(key, ""))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// GetDuration accepts Go durations ("30s") and bare integers as seconds.
func GetDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(GetEnv(key, ""))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

// SetupEnvFile loads the first .env file found. The functions usually run with
// injected environment variables, so a missing file is not an error.
func SetupEnvFile() bool {
	envFiles := []string{
		".env",
		"../../.env",
		"../../../.env",
	}

	for _, envFile := range envFiles {
		loaded, err := godotenv.Read(envFile)
		if err == nil {
			Env = loaded
			return true
		}
	}
	return false
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
