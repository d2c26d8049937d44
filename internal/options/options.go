// Package options is a small key/value table for site-wide values such as
// the default template id and the durable copy of the last import result.
package options

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iknowaviation/quizport/internal/db"
)

type KV struct {
	q   db.Querier
	now func() time.Time
}

func New(q db.Querier) *KV { return &KV{q: q, now: time.Now} }

// Get returns the stored value and whether the key exists.
func (kv *KV) Get(ctx context.Context, name string) (string, bool, error) {
	var v string
	err := kv.q.QueryRowContext(ctx, `SELECT value FROM options WHERE name=$1`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get option %s: %w", name, err)
	}
	return v, true, nil
}

func (kv *KV) Set(ctx context.Context, name, value string) error {
	_, err := kv.q.ExecContext(ctx, `INSERT INTO options (name, value, updated_at) VALUES ($1,$2,$3)
		ON CONFLICT (name) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`,
		name, value, kv.now().Unix())
	if err != nil {
		return fmt.Errorf("set option %s: %w", name, err)
	}
	return nil
}

func (kv *KV) Delete(ctx context.Context, name string) error {
	_, err := kv.q.ExecContext(ctx, `DELETE FROM options WHERE name=$1`, name)
	return err
}
