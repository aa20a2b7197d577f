// Package mysqldb opens the single MySQL connection a session introspects
// and queries.
package mysqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ErrConnection marks failures to reach or authenticate to the database.
var ErrConnection = errors.New("database connection failed")

const (
	DefaultHost = "localhost"
	DefaultPort = 3306
)

type ConnConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Timeout  time.Duration
}

// WithDefaults fills host and port when the caller omitted them.
func (c ConnConfig) WithDefaults(host string, port int) ConnConfig {
	c.Host = strings.TrimSpace(c.Host)
	if c.Host == "" {
		c.Host = strings.TrimSpace(host)
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port <= 0 {
		c.Port = port
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	return c
}

func (c ConnConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: host is required", ErrConnection)
	}
	if strings.TrimSpace(c.User) == "" {
		return fmt.Errorf("%w: user is required", ErrConnection)
	}
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("%w: database is required", ErrConnection)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrConnection, c.Port)
	}
	return nil
}

// DSN renders the driver connection string. Time columns are parsed into
// time.Time so sample rows and results carry native values.
func (c ConnConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	return cfg.FormatDSN()
}

// Redacted describes the target without credentials, for logs.
func (c ConnConfig) Redacted() string {
	return fmt.Sprintf("%s@%s/%s", c.User, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.Database)
}

var sqlOpen = sql.Open

// Open connects and pings. The pool is capped at one connection: a session
// owns exactly one database connection for its lifetime.
func Open(ctx context.Context, cfg ConnConfig) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sqlOpen("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrConnection, cfg.Redacted(), err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnection, cfg.Redacted(), err)
	}
	return db, nil
}

// ServerErrorNumber reports the MySQL error number carried by err, if any.
func ServerErrorNumber(err error) (uint16, bool) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number, true
	}
	return 0, false
}
