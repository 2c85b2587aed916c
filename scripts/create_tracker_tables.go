package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

// 创建事件追踪服务的全部数据表
const schema = `
CREATE TABLE IF NOT EXISTS event_window (
    id         VARCHAR(36) PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS event_triggers (
    account_id INTEGER      NOT NULL,
    cuc        VARCHAR(16)  NOT NULL,
    code       VARCHAR(16)  NOT NULL,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
    PRIMARY KEY (account_id, cuc, code)
);

CREATE TABLE IF NOT EXISTS alarm_audit (
    id               VARCHAR(36)  PRIMARY KEY,
    application_type VARCHAR(64)  NOT NULL,
    account          VARCHAR(32)  NOT NULL,
    auxiliary        VARCHAR(8)   NOT NULL,
    code             VARCHAR(16)  NOT NULL,
    company_id       INTEGER      NOT NULL,
    complement       TEXT         NOT NULL,
    event_id         VARCHAR(32)  NOT NULL,
    event_log        TEXT         NOT NULL,
    partition        VARCHAR(8)   NOT NULL,
    protocol_type    VARCHAR(16)  NOT NULL,
    status           VARCHAR(8)   NOT NULL,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS trigger_registers (
    id                 VARCHAR(36)  PRIMARY KEY,
    account_code       VARCHAR(32)  NOT NULL,
    trade_name         VARCHAR(128) NOT NULL,
    company_trade_name VARCHAR(128) NOT NULL,
    client_group_name  VARCHAR(128) NOT NULL,
    code               VARCHAR(16)  NOT NULL,
    period             VARCHAR(64)  NOT NULL,
    quantity           INTEGER      NOT NULL,
    created_at         TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);
`

func main() {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "sigma_tracker"),
		getEnv("DB_SSLMODE", "disable"),
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute SQL: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ tracker tables created successfully!")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
