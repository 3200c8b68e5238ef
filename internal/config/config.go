package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	WSAddr   string
	HTTPAddr string

	AllowedOrigins []string

	RedisURL    string
	DatabaseURL string

	WebhookURL    string
	WebhookSecret string

	ResultsLimit int
	ResultsTTL   time.Duration

	DisconnectGrace time.Duration
	RoomAbandon     time.Duration

	RoomIDLength int
	MaxRooms     int

	MsgcatDir      string
	SendBuffer     int
	ReadLimitBytes int64
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		WSAddr:          ":3000",
		HTTPAddr:        ":4000",
		ResultsLimit:    100,
		ResultsTTL:      7 * 24 * time.Hour,
		DisconnectGrace: 30 * time.Second,
		RoomAbandon:     45 * time.Second,
		RoomIDLength:    6,
		MaxRooms:        1000,
		SendBuffer:      64,
		ReadLimitBytes:  4096,
	}

	if v := strings.TrimSpace(os.Getenv("WS_ADDR")); v != "" {
		cfg.WSAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MsgcatDir = strings.TrimSpace(os.Getenv("MSGCAT_DIR"))
	cfg.WebhookURL = strings.TrimSpace(os.Getenv("RESULTS_WEBHOOK_URL"))
	cfg.WebhookSecret = strings.TrimSpace(os.Getenv("RESULTS_WEBHOOK_SECRET"))

	if n, ok := positiveInt("RESULTS_LIMIT"); ok {
		cfg.ResultsLimit = n
	}
	if n, ok := positiveInt("RESULTS_TTL_SEC"); ok {
		cfg.ResultsTTL = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("DISCONNECT_GRACE_SEC"); ok {
		cfg.DisconnectGrace = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("ROOM_ABANDON_SEC"); ok {
		cfg.RoomAbandon = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("ROOM_ID_LENGTH"); ok {
		cfg.RoomIDLength = n
	}
	if n, ok := positiveInt("MAX_ROOMS"); ok {
		cfg.MaxRooms = n
	}
	if n, ok := positiveInt("SEND_BUFFER"); ok {
		cfg.SendBuffer = n
	}
	if n, ok := positiveInt("READ_LIMIT_BYTES"); ok {
		cfg.ReadLimitBytes = int64(n)
	}

	if cfg.RoomIDLength < 4 {
		return nil, errors.New("ROOM_ID_LENGTH must be at least 4")
	}
	if cfg.RedisURL != "" {
		if err := checkScheme(cfg.RedisURL, "redis", "rediss"); err != nil {
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
	}
	if cfg.DatabaseURL != "" {
		if err := checkScheme(cfg.DatabaseURL, "postgres", "postgresql"); err != nil {
			return nil, fmt.Errorf("DATABASE_URL: %w", err)
		}
	}

	if cfg.WebhookURL != "" {
		if err := checkScheme(cfg.WebhookURL, "http", "https"); err != nil {
			return nil, fmt.Errorf("RESULTS_WEBHOOK_URL: %w", err)
		}
	}

	return cfg, nil
}

// positiveInt reads an integer env var; unset, malformed or non-positive values report ok=false.
func positiveInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func checkScheme(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("unsupported scheme: %s", u.Scheme)
}
