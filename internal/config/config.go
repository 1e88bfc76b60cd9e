package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingCredential = errors.New("config: BOT_TOKEN environment variable is required")

// Config holds the bot settings read from the environment.
type Config struct {
	Token         string
	Debug         bool
	PollTimeout   int
	AdminIDs      []int64
	QuestionsFile string
	WebAppURL     string
	Broadcast     BroadcastConfig
}

// BroadcastConfig controls the admin fan-out.
type BroadcastConfig struct {
	SendDelay   time.Duration
	CancelToken string
}

// Load reads configuration from the environment, with an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := getEnv("BOT_TOKEN", os.Getenv("TELEGRAM_BOT_TOKEN"))
	if token == "" {
		return nil, ErrMissingCredential
	}

	adminIDs, err := parseIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("config: ADMIN_IDS: %w", err)
	}

	debug, _ := strconv.ParseBool(getEnv("BOT_DEBUG", "false"))

	return &Config{
		Token:         token,
		Debug:         debug,
		PollTimeout:   getEnvInt("POLL_TIMEOUT_SEC", 60),
		AdminIDs:      adminIDs,
		QuestionsFile: getEnv("QUESTIONS_FILE", "questions.json"),
		WebAppURL:     strings.TrimRight(os.Getenv("WEBAPP_URL"), "/"),
		Broadcast: BroadcastConfig{
			SendDelay:   time.Duration(getEnvInt("BROADCAST_DELAY_MS", 50)) * time.Millisecond,
			CancelToken: getEnv("BROADCAST_CANCEL_TOKEN", "cancel"),
		},
	}, nil
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", v, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
