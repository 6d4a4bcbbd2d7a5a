package testsupport

import (
	"testing"

	"github.com/jmoiron/sqlx"

	"journalbot/internal/adapters/config"
	"journalbot/internal/adapters/postgres"
)

const tradeEventsSchema = `
CREATE TABLE IF NOT EXISTS trade_events (
    id          UUID PRIMARY KEY,
    user_id     BIGINT         NOT NULL,
    instrument  TEXT           NOT NULL,
    side        TEXT           NOT NULL CHECK (side IN ('BUY', 'SELL')),
    quantity    NUMERIC(28, 8) NOT NULL CHECK (quantity > 0),
    price       NUMERIC(28, 8) NOT NULL CHECK (price > 0),
    ts          TIMESTAMPTZ    NOT NULL,
    seq         BIGINT         NOT NULL,
    UNIQUE (user_id, instrument, seq)
)`

// PostgresTestHelper manages a database connection with the trade event
// schema provisioned. The table is truncated before and after each test, so
// repository code that opens its own transactions still sees a clean slate.
type PostgresTestHelper struct {
	client *postgres.Client
}

// NewPostgresTestHelper opens a connection and provisions the schema.
func NewPostgresTestHelper(t *testing.T, cfg config.PostgresConfig) *PostgresTestHelper {
	t.Helper()

	client, err := postgres.NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create postgres client: %v", err)
	}

	if _, err := client.DB().Exec(tradeEventsSchema); err != nil {
		_ = client.Close()
		t.Fatalf("failed to provision schema: %v", err)
	}

	helper := &PostgresTestHelper{client: client}
	helper.truncate(t)

	t.Cleanup(func() {
		helper.truncate(t)
		_ = client.Close()
	})

	return helper
}

// DB returns the underlying database handle.
func (h *PostgresTestHelper) DB() *sqlx.DB {
	return h.client.DB()
}

func (h *PostgresTestHelper) truncate(t *testing.T) {
	t.Helper()

	if _, err := h.client.DB().Exec("TRUNCATE trade_events"); err != nil {
		t.Fatalf("failed to truncate trade_events: %v", err)
	}
}

// NewTestPostgres creates a test postgres helper with config loaded from the
// environment. Tests are skipped when no database is configured.
func NewTestPostgres(t *testing.T) *PostgresTestHelper {
	t.Helper()

	dbConfigs := LoadDatabaseConfigsFromEnv(t)

	return NewPostgresTestHelper(t, dbConfigs.Postgres)
}
