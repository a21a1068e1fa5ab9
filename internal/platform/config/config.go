package config

import (
	"os"
	"strconv"
	"time"
)

// Neo4j captures connection settings for the registry graph store. The store
// owns pooling and query execution; the analysis core only reads through it.
type Neo4j struct {
	URI               string
	User              string
	Password          string
	Database          string
	MaxPoolSize       int
	ConnectionTimeout time.Duration
}

// FromEnv builds the store config from environment variables so main stays
// lean. Defaults target a local development instance.
func FromEnv() Neo4j {
	return Neo4j{
		URI:               envOr("TAXWATCH_NEO4J_URI", "bolt://localhost:7687"),
		User:              envOr("TAXWATCH_NEO4J_USER", "neo4j"),
		Password:          envOr("TAXWATCH_NEO4J_PASSWORD", "password"),
		Database:          envOr("TAXWATCH_NEO4J_DATABASE", "neo4j"),
		MaxPoolSize:       envIntOr("TAXWATCH_NEO4J_MAX_POOL_SIZE", 10),
		ConnectionTimeout: time.Duration(envIntOr("TAXWATCH_NEO4J_CONNECTION_TIMEOUT_SEC", 15)) * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
