package rewards

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Обязательная переменная окружения
func Required(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("env %s is not set", name)
	}
	return v, nil
}

// Целое из окружения, def если не задано или некорректно. Ноль заменяется на 1
func Workers(name string, def int) int {
	n, err := strconv.Atoi(os.Getenv(name))
	if err != nil || n < 0 {
		n = def
	}
	if n == 0 {
		n = 1
	}
	return n
}

func Duration(name string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(name))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Часовой пояс календаря стриков
func Location(name string) (*time.Location, error) {
	tz := os.Getenv(name)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("env %s: %w", name, err)
	}
	return loc, nil
}

func String(name string, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
