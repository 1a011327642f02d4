package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity store kinds accepted by IDENTITY_STORE.
const (
	IdentityStoreFile   = "file"
	IdentityStoreMemory = "memory"
	IdentityStoreMongo  = "mongo"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env              string
	APIURL           string
	AccessToken      string
	AuthCookie       string
	AuthBearer       bool
	HTTPTimeout      time.Duration
	InboxInterval    time.Duration
	MessagesInterval time.Duration
	MessagesLimit    int
	IdentityStore    string
	IdentityPath     string
	MongoURI         string
	MongoDB          string
	KafkaBrokers     []string
	KafkaTopicPrefix string
	StubHTTPAddr     string
	StubTokens       map[string]string
	StubListings     map[string]string
}

// Load parses the chat client configuration. CHAT_API_URL is required.
func Load() (Config, error) {
	return LoadWithAPIURL("")
}

// LoadWithAPIURL is Load with apiURL taking precedence over CHAT_API_URL when
// it is not empty. The environment is left untouched.
func LoadWithAPIURL(apiURL string) (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}
	if apiURL = strings.TrimSpace(apiURL); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if cfg.APIURL == "" {
		return Config{}, fmt.Errorf("CHAT_API_URL is required")
	}
	return cfg, nil
}

// LoadStub parses the configuration of the development backend, which does
// not talk to another API.
func LoadStub() (Config, error) {
	return load()
}

func load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		APIURL:           strings.TrimSpace(os.Getenv("CHAT_API_URL")),
		AccessToken:      strings.TrimSpace(os.Getenv("CHAT_ACCESS_TOKEN")),
		AuthCookie:       getEnv("CHAT_AUTH_COOKIE", "access_token"),
		IdentityStore:    strings.ToLower(getEnv("IDENTITY_STORE", IdentityStoreFile)),
		IdentityPath:     os.Getenv("IDENTITY_PATH"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "campuschat"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		StubHTTPAddr:     getEnv("STUB_HTTP_ADDR", ":8080"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}

	bearer, err := parseBoolEnv("CHAT_AUTH_BEARER", false)
	if err != nil {
		return Config{}, err
	}
	cfg.AuthBearer = bearer

	if cfg.HTTPTimeout, err = parseDurationEnv("CHAT_HTTP_TIMEOUT", 0); err != nil {
		return Config{}, err
	}
	if cfg.InboxInterval, err = parseDurationEnv("INBOX_POLL_INTERVAL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MessagesInterval, err = parseDurationEnv("MESSAGES_POLL_INTERVAL", 4*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MessagesLimit, err = parsePositiveIntEnv("MESSAGES_LIMIT", 50); err != nil {
		return Config{}, err
	}
	if cfg.StubTokens, err = parsePairsEnv("STUB_TOKENS"); err != nil {
		return Config{}, err
	}
	if cfg.StubListings, err = parsePairsEnv("STUB_LISTINGS"); err != nil {
		return Config{}, err
	}

	switch cfg.IdentityStore {
	case IdentityStoreFile, IdentityStoreMemory:
	case IdentityStoreMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when IDENTITY_STORE=mongo")
		}
	default:
		return Config{}, fmt.Errorf("invalid IDENTITY_STORE %q", cfg.IdentityStore)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parsePositiveIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, raw)
	}
	return v, nil
}

// parsePairsEnv reads "a=1,b=2" into a map.
func parsePairsEnv(key string) (map[string]string, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	out := make(map[string]string)
	if raw == "" {
		return out, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("invalid %s component %q", key, part)
		}
		out[k] = v
	}
	return out, nil
}
