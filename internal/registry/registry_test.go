package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"tankai/internal/model"
)

func TestMultiRecordsAllAndJoinsErrors(t *testing.T) {
	var calls int
	ok := Func(func(context.Context, model.ModelRecord) error { calls++; return nil })
	bad := Func(func(context.Context, model.ModelRecord) error { calls++; return errors.New("db down") })
	m := Multi{bad, nil, ok}
	err := m.Record(context.Background(), model.ModelRecord{ProjectID: "p"})
	if err == nil || err.Error() != "db down" {
		t.Fatalf("expected joined error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both recorders called, got %d", calls)
	}
	if err := (Multi{ok}).Record(context.Background(), model.ModelRecord{}); err != nil {
		t.Fatal(err)
	}
}

func TestRedisLatestKeyAndNilGuard(t *testing.T) {
	if LatestKey("tank-7") != "tankai:model:tank-7:latest" {
		t.Fatalf("key %s", LatestKey("tank-7"))
	}
	var r *RedisLatest
	if err := r.Record(context.Background(), model.ModelRecord{CreatedAt: time.Now()}); err == nil {
		t.Fatal("nil recorder should error")
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}
