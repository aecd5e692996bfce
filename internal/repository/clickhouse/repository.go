package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/repository"
)

// Repository implements the store interfaces against ClickHouse.
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// Reconnect re-dials the underlying client; used between retry attempts.
func (r *Repository) Reconnect(ctx context.Context) error {
	return r.client.Reconnect(ctx)
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}

// filterClause renders a Filter into a WHERE fragment with bound arguments.
// The fragment always starts with "WHERE 1=1" so callers can append freely.
func filterClause(f repository.Filter) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("WHERE 1=1")
	var args []interface{}

	if f.TeamID != "" {
		sb.WriteString(" AND team_id = ?")
		args = append(args, f.TeamID)
	}
	if f.SourceID != "" {
		sb.WriteString(" AND source_id = ?")
		args = append(args, f.SourceID)
	}
	if f.From > 0 {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, f.From)
	}
	if f.To > 0 {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, f.To)
	}
	return sb.String(), args
}

// tableMissing reports whether an error means the queried table does not
// exist. Only used for the optional config/profile tables.
func tableMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "doesn't exist") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "unknown table")
}

// isNoRows reports whether a single-row scan came back empty.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
