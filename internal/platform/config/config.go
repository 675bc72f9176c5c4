package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr                string
	DatabaseURL         string
	RedisAddr           string
	KafkaBrokers        []string
	JWTSigningKey       string
	SequenceResetPolicy string
}

// CitizenCacheTTL bounds staleness of cached citizen directory entries.
var CitizenCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CIVICDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, broker := range strings.Split(raw, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
	}

	resetPolicy := os.Getenv("SEQUENCE_RESET_POLICY")
	if resetPolicy == "" {
		resetPolicy = "yearly"
	}

	return Server{
		Addr:                addr,
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		KafkaBrokers:        brokers,
		JWTSigningKey:       jwtSigningKey,
		SequenceResetPolicy: resetPolicy,
	}
}
