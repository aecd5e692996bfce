package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/config"
)

// Client wraps the ClickHouse connection. Reconnect swaps the underlying
// connection, which the retry loop uses between attempts.
type Client struct {
	mu         sync.RWMutex
	connection driver.Conn
	config     *config.ClickHouse
	log        *zap.Logger
}

// NewClient creates a new ClickHouse client with the given configuration
func NewClient(ctx context.Context, cfg *config.ClickHouse, log *zap.Logger) (*Client, error) {
	c := &Client{config: cfg, log: log}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%s", c.config.Host, c.config.Port)

	c.log.Info("Connecting to ClickHouse",
		zap.String("host", c.config.Host),
		zap.String("port", c.config.Port),
		zap.String("database", c.config.Database),
		zap.Bool("useTLS", c.config.UseTLS))

	var tlsConfig *tls.Config
	if c.config.UseTLS {
		tlsConfig = &tls.Config{InsecureSkipVerify: false}
	}

	connection, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: c.config.Database,
			Username: c.config.User,
			Password: c.config.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": c.config.QueryTimeoutSec,
		},
		TLS:              tlsConfig,
		DialTimeout:      5 * time.Second,
		MaxOpenConns:     c.config.MaxOpenConns,
		MaxIdleConns:     c.config.MaxIdleConns,
		ConnMaxLifetime:  time.Duration(c.config.ConnMaxLifetime) * time.Second,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		BlockBufferSize:  10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := connection.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	c.mu.Lock()
	old := c.connection
	c.connection = connection
	c.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			c.log.Warn("Error closing previous ClickHouse connection", zap.Error(err))
		}
	}

	c.log.Info("ClickHouse connection established successfully")
	return nil
}

// Conn returns the underlying ClickHouse connection
func (c *Client) Conn() driver.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connection
}

// Reconnect tears down the current connection and dials a fresh one.
func (c *Client) Reconnect(ctx context.Context) error {
	c.log.Info("Reconnecting to ClickHouse")
	return c.connect(ctx)
}

// Ping checks if the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	c.log.Info("Closing ClickHouse connection")
	if err := c.Conn().Close(); err != nil {
		c.log.Error("Error closing ClickHouse connection", zap.Error(err))
		return err
	}
	return nil
}
