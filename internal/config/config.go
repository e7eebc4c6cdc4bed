package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Raffle   RaffleConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RaffleConfig struct {
	// OperatorIDs feed the privilege predicate: only these actors may
	// draw, confirm, reject, delete and archive.
	OperatorIDs     []string
	AnnounceChannel string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := getenvDefault("SERVER_HOST", "localhost")

	serverPort, err := strconv.Atoi(getenvDefault("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	postgresHost := getenvDefault("POSTGRES_HOST", "localhost")

	postgresPort, err := strconv.Atoi(getenvDefault("POSTGRES_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	operatorIDs := splitList(os.Getenv("RAFFLE_OPERATOR_IDS"))
	if len(operatorIDs) == 0 {
		return nil, fmt.Errorf("%s: RAFFLE_OPERATOR_IDS must list at least one operator", op)
	}

	return &Config{
		Server: ServerConfig{
			Host: serverHost,
			Port: serverPort,
		},
		Postgres: PostgresConfig{
			User:     postgresUser,
			Password: postgresPassword,
			Name:     postgresDB,
			Host:     postgresHost,
			Port:     postgresPort,
			SSLMode:  getenvDefault("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		Raffle: RaffleConfig{
			OperatorIDs:     operatorIDs,
			AnnounceChannel: os.Getenv("RAFFLE_ANNOUNCE_CHANNEL"),
		},
	}, nil
}

// IsOperator is the privilege predicate handed to the transport layer.
func (c *Config) IsOperator(actorID string) bool {
	for _, id := range c.Raffle.OperatorIDs {
		if id == actorID {
			return true
		}
	}
	return false
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
