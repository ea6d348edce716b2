package postgres_test

import (
	"context"
	"testing"
	"time"

	"pricestream/config"
	"pricestream/pkg/storage/postgres"
)

func localConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "pricestream_test",
		SSLMode:  "disable",
		TimeZone: "UTC",
	}
}

// testClient connects to a local Postgres and migrates the quote table,
// skipping the test when no server is reachable.
func testClient(t *testing.T) *postgres.PostgresClient {
	t.Helper()
	client, err := postgres.InitializeAndMigrateQuoteRecord(localConfig(), "dev", true)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// go test -v --run ^TestPostgresInvalidDSN$
func TestPostgresInvalidDSN(t *testing.T) {
	invalidDSN := "host=invalid port=5432 user=fail password=fail dbname=fail sslmode=disable"

	_, err := postgres.NewClient(invalidDSN)
	if err == nil {
		t.Fatal("expected error for invalid DSN, got nil")
	}
}

// go test -v --run ^TestPostgresHealthy$
func TestPostgresHealthy(t *testing.T) {
	client := testClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if !client.IsHealthy(ctx) {
		t.Fatal("expected healthy DB connection")
	}
}
