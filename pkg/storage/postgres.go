package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"navportal/pkg/database"

	"github.com/lib/pq"
)

const postgresChangeChannel = "portal_storage"

// Postgres stores values in the portal_storage table. A row trigger emits
// pg_notify on every change, which Watch picks up through a pq.Listener.
type Postgres struct {
	db       *sql.DB
	dsn      string
	watchers watchers

	mu       sync.Mutex
	listener *pq.Listener
	done     chan struct{}
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := database.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Postgres{db: db, dsn: dsn}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM portal_storage WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", key, err)
	}
	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO portal_storage (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM portal_storage WHERE key = ANY($1)`, pq.Array(keys),
	)
	if err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT key FROM portal_storage WHERE key LIKE $1 ESCAPE '\' ORDER BY key`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (p *Postgres) Watch(fn func(Change)) func() {
	cancel := p.watchers.add(fn)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		if err := p.listen(); err != nil {
			log.Printf("[STORAGE] postgres listen: %v", err)
		}
	}
	return cancel
}

func (p *Postgres) listen() error {
	l := pq.NewListener(p.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("[STORAGE] listener event %d: %v", ev, err)
		}
	})
	if err := l.Listen(postgresChangeChannel); err != nil {
		l.Close()
		return err
	}

	p.listener = l
	p.done = make(chan struct{})

	go func(l *pq.Listener, done chan struct{}) {
		defer close(done)
		for n := range l.Notify {
			// nil is sent after a reconnect; notifications may have been missed.
			if n == nil {
				continue
			}
			var c Change
			if err := json.Unmarshal([]byte(n.Extra), &c); err != nil {
				log.Printf("[STORAGE] bad change payload: %v", err)
				continue
			}
			p.watchers.emit(c)
		}
	}(l, p.done)
	return nil
}

func (p *Postgres) Close() error {
	p.mu.Lock()
	l, done := p.listener, p.done
	p.listener = nil
	p.mu.Unlock()

	if l != nil {
		l.Close()
		<-done
	}
	return p.db.Close()
}
