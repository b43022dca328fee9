package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	// Get command
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go [drop|up|seed]")
		os.Exit(1)
	}

	command := os.Args[1]

	// Connect to database
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Data seeded successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Usage: go run main.go [drop|up|seed]")
		os.Exit(1)
	}
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`DROP TABLE IF EXISTS schedule_events CASCADE`,
		`DROP TABLE IF EXISTS area_statement_tags CASCADE`,
		`DROP TABLE IF EXISTS area_statements CASCADE`,
		`DROP TABLE IF EXISTS prediction_outcome_votes CASCADE`,
		`DROP TABLE IF EXISTS prediction_bets CASCADE`,
		`DROP TABLE IF EXISTS prediction_segments CASCADE`,
		`DROP TABLE IF EXISTS prediction_statements CASCADE`,
		`DROP TABLE IF EXISTS pool_ballot_entries CASCADE`,
		`DROP TABLE IF EXISTS pool_ballots CASCADE`,
		`DROP TABLE IF EXISTS direct_ballot_entries CASCADE`,
		`DROP TABLE IF EXISTS delegations CASCADE`,
		`DROP TABLE IF EXISTS group_members CASCADE`,
		`DROP TABLE IF EXISTS proposals CASCADE`,
		`DROP TABLE IF EXISTS polls CASCADE`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Dropped: %s\n", query)
	}

	return nil
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS polls (
			id BIGSERIAL PRIMARY KEY,
			group_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			poll_type TEXT NOT NULL CHECK (poll_type IN ('ranking', 'cardinal', 'schedule')),
			tag TEXT NOT NULL DEFAULT '',
			dynamic BOOLEAN NOT NULL DEFAULT FALSE,
			quorum INT,
			status TEXT NOT NULL DEFAULT 'ongoing'
				CHECK (status IN ('ongoing', 'processing', 'finished', 'failed_quorum')),
			result_computed BOOLEAN NOT NULL DEFAULT FALSE,
			participants INT NOT NULL DEFAULT 0,
			last_phase TEXT NOT NULL DEFAULT '',
			start_at TIMESTAMPTZ NOT NULL,
			area_vote_end TIMESTAMPTZ NOT NULL,
			proposal_end TIMESTAMPTZ NOT NULL,
			prediction_statement_end TIMESTAMPTZ NOT NULL,
			prediction_bet_end TIMESTAMPTZ NOT NULL,
			delegate_vote_end TIMESTAMPTZ NOT NULL,
			vote_end TIMESTAMPTZ NOT NULL,
			end_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_polls_due
			ON polls (end_at) WHERE status IN ('ongoing', 'processing')`,

		`CREATE INDEX IF NOT EXISTS idx_polls_tag ON polls (tag)`,

		`CREATE TABLE IF NOT EXISTS proposals (
			id BIGSERIAL PRIMARY KEY,
			poll_id BIGINT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
			author_id BIGINT NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			event_start TIMESTAMPTZ,
			event_end TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_proposals_poll ON proposals (poll_id)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			group_id BIGINT NOT NULL,
			member_id BIGINT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			vote_right BOOLEAN NOT NULL DEFAULT TRUE,
			PRIMARY KEY (group_id, member_id)
		)`,

		`CREATE TABLE IF NOT EXISTS delegations (
			group_id BIGINT NOT NULL,
			delegator_id BIGINT NOT NULL,
			pool_id BIGINT NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (group_id, delegator_id, pool_id, tag)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_delegations_group ON delegations (group_id)`,

		`CREATE TABLE IF NOT EXISTS direct_ballot_entries (
			poll_id BIGINT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
			member_id BIGINT NOT NULL,
			proposal_id BIGINT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
			priority INT NOT NULL DEFAULT 0,
			raw_score BIGINT NOT NULL DEFAULT 0,
			vote BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (poll_id, member_id, proposal_id)
		)`,

		`CREATE TABLE IF NOT EXISTS pool_ballots (
			poll_id BIGINT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
			pool_id BIGINT NOT NULL,
			mandate INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (poll_id, pool_id)
		)`,

		`CREATE TABLE IF NOT EXISTS pool_ballot_entries (
			poll_id BIGINT NOT NULL,
			pool_id BIGINT NOT NULL,
			proposal_id BIGINT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
			priority INT NOT NULL DEFAULT 0,
			raw_score BIGINT NOT NULL DEFAULT 0,
			vote BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (poll_id, pool_id, proposal_id),
			FOREIGN KEY (poll_id, pool_id)
				REFERENCES pool_ballots (poll_id, pool_id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS prediction_statements (
			id BIGSERIAL PRIMARY KEY,
			poll_id BIGINT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
			author_id BIGINT NOT NULL,
			end_at TIMESTAMPTZ NOT NULL,
			combined_bet DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_prediction_statements_poll
			ON prediction_statements (poll_id)`,

		`CREATE TABLE IF NOT EXISTS prediction_segments (
			statement_id BIGINT NOT NULL REFERENCES prediction_statements(id) ON DELETE CASCADE,
			proposal_id BIGINT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
			is_true BOOLEAN NOT NULL,
			PRIMARY KEY (statement_id, proposal_id)
		)`,

		`CREATE TABLE IF NOT EXISTS prediction_bets (
			statement_id BIGINT NOT NULL REFERENCES prediction_statements(id) ON DELETE CASCADE,
			predictor_id BIGINT NOT NULL,
			score INT NOT NULL CHECK (score BETWEEN 0 AND 5),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (statement_id, predictor_id)
		)`,

		`CREATE TABLE IF NOT EXISTS prediction_outcome_votes (
			statement_id BIGINT NOT NULL REFERENCES prediction_statements(id) ON DELETE CASCADE,
			voter_id BIGINT NOT NULL,
			agree BOOLEAN NOT NULL,
			PRIMARY KEY (statement_id, voter_id)
		)`,

		`CREATE TABLE IF NOT EXISTS area_statements (
			id BIGSERIAL PRIMARY KEY,
			poll_id BIGINT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
			author_id BIGINT NOT NULL,
			yes INT NOT NULL DEFAULT 0,
			no INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS area_statement_tags (
			statement_id BIGINT NOT NULL REFERENCES area_statements(id) ON DELETE CASCADE,
			tag TEXT NOT NULL,
			votes INT NOT NULL DEFAULT 0,
			PRIMARY KEY (statement_id, tag)
		)`,

		`CREATE TABLE IF NOT EXISTS schedule_events (
			id UUID PRIMARY KEY,
			origin TEXT NOT NULL,
			poll_id BIGINT NOT NULL,
			start_at TIMESTAMPTZ NOT NULL,
			end_at TIMESTAMPTZ NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			UNIQUE (origin, poll_id)
		)`,
	}

	for i, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query %d: %w", i+1, err)
		}
	}

	return nil
}

func seedData(ctx context.Context, conn *pgx.Conn) error {
	// A small group with one ranking poll spanning the next hour, enough
	// to exercise the lifecycle locally
	queries := []string{
		`INSERT INTO group_members (group_id, member_id, active, vote_right) VALUES
			(1, 101, TRUE, TRUE),
			(1, 102, TRUE, TRUE),
			(1, 103, TRUE, TRUE),
			(1, 104, TRUE, FALSE)
		ON CONFLICT DO NOTHING`,

		`INSERT INTO delegations (group_id, delegator_id, pool_id, tag) VALUES
			(1, 103, 201, 'environment')
		ON CONFLICT DO NOTHING`,

		`INSERT INTO polls (group_id, name, poll_type, tag, dynamic, quorum, status,
			start_at, area_vote_end, proposal_end, prediction_statement_end,
			prediction_bet_end, delegate_vote_end, vote_end, end_at)
		VALUES (1, 'Park renovation priorities', 'ranking', 'environment', FALSE, 30, 'ongoing',
			NOW(), NOW() + INTERVAL '5 minutes', NOW() + INTERVAL '15 minutes',
			NOW() + INTERVAL '20 minutes', NOW() + INTERVAL '25 minutes',
			NOW() + INTERVAL '40 minutes', NOW() + INTERVAL '50 minutes',
			NOW() + INTERVAL '60 minutes')`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to seed: %w", err)
		}
	}

	return nil
}
