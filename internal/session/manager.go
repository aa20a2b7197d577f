package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/mysqldb"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/schema"
)

type ConnectRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

type Opener func(ctx context.Context, cfg mysqldb.ConnConfig) (Conn, error)

func OpenMySQL(ctx context.Context, cfg mysqldb.ConnConfig) (Conn, error) {
	db, err := mysqldb.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return db, nil
}

type Config struct {
	DefaultHost    string
	DefaultPort    int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	MaxSessions    int
	ReapInterval   time.Duration
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		DefaultHost:    cfg.MySQL.DefaultHost,
		DefaultPort:    cfg.MySQL.DefaultPort,
		ConnectTimeout: cfg.MySQL.ConnectTimeout,
		IdleTimeout:    cfg.Session.IdleTimeout,
		MaxSessions:    cfg.Session.MaxSessions,
		ReapInterval:   cfg.Session.ReapInterval,
	}
}

type Manager struct {
	Config       Config
	Introspector Introspector
	Open         Opener
	Logger       *slog.Logger
	Clock        func() time.Time
	NewID        func() string

	mu       sync.Mutex
	sessions map[string]*Session
	pending  int
}

func NewManager(cfg Config, introspector Introspector, logger *slog.Logger) *Manager {
	return &Manager{
		Config:       cfg,
		Introspector: introspector,
		Open:         OpenMySQL,
		Logger:       logger,
	}
}

// Connect opens a connection and snapshots its schema. Each call yields a new
// session; existing sessions are left untouched.
func (m *Manager) Connect(ctx context.Context, req ConnectRequest) (*Session, error) {
	m.ensureDefaults()

	if err := m.reserve(); err != nil {
		return nil, err
	}
	reserved := true
	defer func() {
		if reserved {
			m.release()
		}
	}()

	connCfg := mysqldb.ConnConfig{
		Host:     req.Host,
		Port:     req.Port,
		User:     req.User,
		Password: req.Password,
		Database: req.Database,
		Timeout:  m.Config.ConnectTimeout,
	}.WithDefaults(m.Config.DefaultHost, m.Config.DefaultPort)

	conn, err := m.Open(ctx, connCfg)
	if err != nil {
		return nil, err
	}
	snapshot, err := m.Introspector.Build(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	sess := newSession(m.NewID(), connCfg.Redacted(), conn, snapshot, m.Clock())

	m.mu.Lock()
	m.pending--
	reserved = false
	m.sessions[sess.ID] = sess
	count := len(m.sessions)
	m.mu.Unlock()
	observability.SetActiveSessions(count)

	if m.Logger != nil {
		m.Logger.InfoContext(ctx, "session connected",
			slog.String("session_id", sess.ID),
			slog.String("target", sess.Target),
			slog.Int("tables", len(snapshot.Tables)),
			slog.Int("foreign_keys", snapshot.ForeignKeyCount()),
		)
	}
	return sess, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// List returns live sessions ordered by creation time.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close drops the session and closes its connection. A session serving a
// request is left open and ErrBusy is returned.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !sess.mu.TryLock() {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBusy, id)
	}
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()

	observability.SetActiveSessions(count)
	err := sess.close()
	sess.mu.Unlock()
	if err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	if m.Logger != nil {
		m.Logger.Info("session closed", slog.String("session_id", id))
	}
	return nil
}

// ReapIdle closes sessions unused for longer than the idle timeout. Busy
// sessions are skipped.
func (m *Manager) ReapIdle(now time.Time) int {
	m.ensureDefaults()
	if m.Config.IdleTimeout <= 0 {
		return 0
	}

	var expired []*Session
	m.mu.Lock()
	for id, sess := range m.sessions {
		if now.Sub(sess.LastUsed()) < m.Config.IdleTimeout {
			continue
		}
		if !sess.mu.TryLock() {
			continue
		}
		delete(m.sessions, id)
		expired = append(expired, sess)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}
	observability.SetActiveSessions(count)
	for _, sess := range expired {
		if err := sess.close(); err != nil && m.Logger != nil {
			m.Logger.Warn("close idle session failed", slog.String("session_id", sess.ID), slog.Any("error", err))
		}
		sess.mu.Unlock()
		if m.Logger != nil {
			m.Logger.Info("idle session reaped", slog.String("session_id", sess.ID), slog.Time("last_used", sess.LastUsed()))
		}
	}
	return len(expired)
}

// Run reaps idle sessions until ctx is done, then closes every session,
// waiting for in-flight requests to release them.
func (m *Manager) Run(ctx context.Context) error {
	m.ensureDefaults()

	ticker := time.NewTicker(m.Config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return nil
		case <-ticker.C:
			m.ReapIdle(m.Clock())
		}
	}
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()
	for id, sess := range sessions {
		sess.mu.Lock()
		err := sess.close()
		sess.mu.Unlock()
		if err != nil && m.Logger != nil {
			m.Logger.Warn("close session failed", slog.String("session_id", id), slog.Any("error", err))
		}
	}
	observability.SetActiveSessions(0)
}

func (m *Manager) reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Config.MaxSessions > 0 && len(m.sessions)+m.pending >= m.Config.MaxSessions {
		return fmt.Errorf("%w: %d sessions open", ErrLimitReached, m.Config.MaxSessions)
	}
	m.pending++
	return nil
}

func (m *Manager) release() {
	m.mu.Lock()
	m.pending--
	m.mu.Unlock()
}

func (m *Manager) ensureDefaults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = map[string]*Session{}
	}
	if m.Open == nil {
		m.Open = OpenMySQL
	}
	if m.Introspector == nil {
		m.Introspector = schema.NewBuilder(schema.DefaultSampleRows)
	}
	if m.Clock == nil {
		m.Clock = time.Now
	}
	if m.NewID == nil {
		m.NewID = uuid.NewString
	}
	if m.Config.ReapInterval <= 0 {
		m.Config.ReapInterval = time.Minute
	}
}
