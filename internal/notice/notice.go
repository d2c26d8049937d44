// Package notice hands the last import result to the operator's next view.
package notice

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/iknowaviation/quizport/internal/importer"
	"github.com/iknowaviation/quizport/internal/options"
)

type Store interface {
	Put(ctx context.Context, key string, r importer.Result) error
	Get(ctx context.Context, key string) (importer.Result, bool, error)
}

type item struct {
	r       importer.Result
	expires time.Time
}

// MemoryStore keeps results for a short TTL, like a transient.
type MemoryStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	items map[string]item
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &MemoryStore{ttl: ttl, now: time.Now, items: map[string]item{}}
}

func (m *MemoryStore) Put(_ context.Context, key string, r importer.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = item{r: r, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (importer.Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return importer.Result{}, false, nil
	}
	if !m.now().Before(it.expires) {
		delete(m.items, key)
		return importer.Result{}, false, nil
	}
	return it.r, true, nil
}

// OptionsStore persists results in the options table.
type OptionsStore struct {
	kv     *options.KV
	prefix string
}

func NewOptionsStore(kv *options.KV) *OptionsStore {
	return &OptionsStore{kv: kv, prefix: "quiz_import_notice:"}
}

func (o *OptionsStore) Put(ctx context.Context, key string, r importer.Result) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return o.kv.Set(ctx, o.prefix+key, string(b))
}

func (o *OptionsStore) Get(ctx context.Context, key string) (importer.Result, bool, error) {
	v, ok, err := o.kv.Get(ctx, o.prefix+key)
	if err != nil || !ok {
		return importer.Result{}, false, err
	}
	var r importer.Result
	if err := json.Unmarshal([]byte(v), &r); err != nil {
		return importer.Result{}, false, fmt.Errorf("decode notice: %w", err)
	}
	return r, true, nil
}

// Recorder writes both stores and reads the transient one first.
type Recorder struct {
	Primary  Store
	Fallback Store
}

func (rc Recorder) Put(ctx context.Context, key string, r importer.Result) error {
	perr := rc.Primary.Put(ctx, key, r)
	if rc.Fallback == nil {
		return perr
	}
	if ferr := rc.Fallback.Put(ctx, key, r); ferr != nil && perr != nil {
		return fmt.Errorf("record notice: %w", perr)
	}
	return nil
}

func (rc Recorder) Get(ctx context.Context, key string) (importer.Result, bool, error) {
	if r, ok, err := rc.Primary.Get(ctx, key); err == nil && ok {
		return r, true, nil
	}
	if rc.Fallback == nil {
		return importer.Result{}, false, nil
	}
	return rc.Fallback.Get(ctx, key)
}
