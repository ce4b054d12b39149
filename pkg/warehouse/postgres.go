package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresJobClient implements JobClient over a jobs table in a
// PostgreSQL-compatible warehouse. Workers elsewhere pick up pending rows;
// this client only submits and observes.
type PostgresJobClient struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresJobClient(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresJobClient, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to warehouse database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to ping warehouse database: %w", err)
	}

	client := &PostgresJobClient{
		pool:   pool,
		logger: logger.With("module", "warehouse_postgres"),
	}

	if err := client.ensureSchema(ctx); err != nil {
		pool.Close()

		return nil, err
	}

	return client, nil
}

func (c *PostgresJobClient) ensureSchema(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS warehouse_jobs (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'pending',
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create warehouse_jobs table: %w", err)
	}

	return nil
}

// SubmitJob inserts a pending job row. When jobID already exists the insert
// is a no-op and the existing job is reattached to.
func (c *PostgresJobClient) SubmitJob(ctx context.Context, jobID, query string) (string, error) {
	if jobID == "" {
		jobID = "job-" + uuid.New().String()
	}

	tag, err := c.pool.Exec(ctx, `
		INSERT INTO warehouse_jobs (id, query)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, jobID, query)
	if err != nil {
		return "", fmt.Errorf("submit job %s: %w", jobID, err)
	}

	if tag.RowsAffected() == 0 {
		c.logger.Info("Reattaching to existing warehouse job", "job_id", jobID)
	}

	return jobID, nil
}

func (c *PostgresJobClient) JobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	var (
		state   string
		message *string
	)

	err := c.pool.QueryRow(ctx, `
		SELECT state, error_message FROM warehouse_jobs WHERE id = $1
	`, jobID).Scan(&state, &message)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JobStatus{}, fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
		}

		return JobStatus{}, fmt.Errorf("job status %s: %w", jobID, err)
	}

	status := JobStatus{JobID: jobID, State: JobState(state)}
	if message != nil {
		status.Message = *message
	}

	return status, nil
}

func (c *PostgresJobClient) Close() {
	c.pool.Close()
}
