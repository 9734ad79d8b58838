package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRow scans a fixed value slice into destinations with reflection, the
// same way a pgx row would populate them.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("fakeRow: destination count mismatch")
	}
	for i, value := range r.values {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Ptr || dv.IsNil() {
			return errors.New("fakeRow: destination is not a pointer")
		}
		if value == nil {
			dv.Elem().Set(reflect.Zero(dv.Elem().Type()))
			continue
		}
		vv := reflect.ValueOf(value)
		switch {
		case vv.Type().AssignableTo(dv.Elem().Type()):
			dv.Elem().Set(vv)
		case vv.Type().ConvertibleTo(dv.Elem().Type()):
			dv.Elem().Set(vv.Convert(dv.Elem().Type()))
		default:
			return errors.New("fakeRow: type mismatch for column " + reflect.TypeOf(value).String())
		}
	}
	return nil
}

type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return fakeRow{values: r.rows[r.idx-1]}.Scan(dest...)
}

func (r *fakeRows) Close() {}

func (r *fakeRows) Err() error { return r.err }

type fakeResult int64

func (r fakeResult) RowsAffected() int64 { return int64(r) }

type sqlCall struct {
	sql  string
	args []any
}

// fakeDB satisfies DBConn with per-call hooks and records every statement.
type fakeDB struct {
	queryRowFunc func(sql string, args []any) Row
	queryFunc    func(sql string, args []any) (Rows, error)
	execFunc     func(sql string, args []any) (Result, error)
	beginFunc    func() (Tx, error)

	queryRowCalls []sqlCall
	queryCalls    []sqlCall
	execCalls     []sqlCall
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	f.queryRowCalls = append(f.queryRowCalls, sqlCall{sql, args})
	if f.queryRowFunc != nil {
		return f.queryRowFunc(sql, args)
	}
	return fakeRow{err: errors.New("fakeDB: unexpected QueryRow")}
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	f.queryCalls = append(f.queryCalls, sqlCall{sql, args})
	if f.queryFunc != nil {
		return f.queryFunc(sql, args)
	}
	return &fakeRows{}, nil
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (Result, error) {
	f.execCalls = append(f.execCalls, sqlCall{sql, args})
	if f.execFunc != nil {
		return f.execFunc(sql, args)
	}
	return fakeResult(1), nil
}

func (f *fakeDB) Begin(ctx context.Context) (Tx, error) {
	if f.beginFunc != nil {
		return f.beginFunc()
	}
	return nil, errors.New("fakeDB: unexpected Begin")
}

// fakeTx mirrors fakeDB for transactional statements and records the
// commit/rollback outcome.
type fakeTx struct {
	queryRowFunc func(sql string, args []any) Row
	execFunc     func(sql string, args []any) (Result, error)

	queryRowCalls []sqlCall
	execCalls     []sqlCall
	committed     bool
	rolledBack    bool
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	t.queryRowCalls = append(t.queryRowCalls, sqlCall{sql, args})
	if t.queryRowFunc != nil {
		return t.queryRowFunc(sql, args)
	}
	return fakeRow{err: errors.New("fakeTx: unexpected QueryRow")}
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return &fakeRows{}, nil
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (Result, error) {
	t.execCalls = append(t.execCalls, sqlCall{sql, args})
	if t.execFunc != nil {
		return t.execFunc(sql, args)
	}
	return fakeResult(1), nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// fakeRedis is an in-memory RedisConn. Get returns redis.Nil for missing
// keys, matching the adapter's behavior.
type fakeRedis struct {
	mu          sync.Mutex
	store       map[string]string
	setErr      error
	expireCalls int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{store: make(map[string]string)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case string:
		f.store[key] = v
	default:
		return errors.New("fakeRedis: unsupported value type")
	}
	return nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.store[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireCalls++
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.store, k)
	}
	return nil
}

type publishedEvent struct {
	topic   string
	kind    string
	payload any
}

// recordingPublisher captures events instead of fanning them out.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, kind string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{topic: topic, kind: kind, payload: payload})
	return nil
}

func (p *recordingPublisher) byKind(kind string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, ev := range p.events {
		if ev.kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
