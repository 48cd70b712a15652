package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrDatabaseNotAllowed = errors.New("database is not in the allowed list")

type PoolConfig struct {
	Dialect         Dialect
	DSNTemplate     string
	Allowed         []string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Opener opens a handle for driver and dsn. Tests swap it for sqlmock.
type Opener func(driver, dsn string) (*sql.DB, error)

// Pool lazily opens one *sql.DB per allowed database and reuses it afterwards.
type Pool struct {
	cfg     PoolConfig
	open    Opener
	allowed map[string]struct{}

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewPool(cfg PoolConfig, open Opener) *Pool {
	if open == nil {
		open = sql.Open
	}
	allowed := make(map[string]struct{}, len(cfg.Allowed))
	for _, name := range cfg.Allowed {
		allowed[name] = struct{}{}
	}
	return &Pool{
		cfg:     cfg,
		open:    open,
		allowed: allowed,
		dbs:     map[string]*sql.DB{},
	}
}

func (p *Pool) Dialect() Dialect {
	return p.cfg.Dialect
}

// Databases returns the allowed database names in configured order.
func (p *Pool) Databases() []string {
	out := make([]string, len(p.cfg.Allowed))
	copy(out, p.cfg.Allowed)
	return out
}

func (p *Pool) IsAllowed(name string) bool {
	_, ok := p.allowed[name]
	return ok
}

// DB returns the handle for name, opening and pinging it on first use. The
// lock is not held while a handle is opened, so a slow database does not block
// lookups of the others.
func (p *Pool) DB(ctx context.Context, name string) (*sql.DB, error) {
	if !p.IsAllowed(name) {
		return nil, fmt.Errorf("%w: %q", ErrDatabaseNotAllowed, name)
	}

	if db, ok := p.cached(name); ok {
		return db, nil
	}
	db, err := p.openHandle(ctx, name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.dbs[name]; ok {
		_ = db.Close()
		return existing, nil
	}
	p.dbs[name] = db
	return db, nil
}

func (p *Pool) cached(name string) (*sql.DB, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	db, ok := p.dbs[name]
	return db, ok
}

func (p *Pool) openHandle(ctx context.Context, name string) (*sql.DB, error) {
	dsn, err := p.cfg.Dialect.DSN(p.cfg.DSNTemplate, name)
	if err != nil {
		return nil, err
	}
	db, err := p.open(p.cfg.Dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", name, err)
	}
	if p.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(p.cfg.MaxOpenConns)
	}
	if p.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(p.cfg.MaxIdleConns)
	}
	if p.cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(p.cfg.ConnMaxIdleTime)
	}
	if p.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(p.cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database %q: %w", name, err)
	}
	return db, nil
}

// HealthCheck pings every handle opened so far.
func (p *Pool) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	handles := make(map[string]*sql.DB, len(p.dbs))
	for name, db := range p.dbs {
		handles[name] = db
	}
	p.mu.Unlock()

	var errs []error
	for name, db := range handles {
		if err := db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("ping database %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for name, db := range p.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database %q: %w", name, err))
		}
		delete(p.dbs, name)
	}
	return errors.Join(errs...)
}
