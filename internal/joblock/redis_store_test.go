package joblock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestRedisStore_TryAcquire(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	lock := &Lock{Key: "b1", Holder: "h1", AcquiredAt: time.Now(), TTL: 30 * time.Second}

	mock.ExpectSetNX("stayzen:joblock:b1", "h1", 30*time.Second).SetVal(true)
	if err := store.TryAcquire(ctx, lock); err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}

	// SET NX returning false means a live lock exists.
	mock.ExpectSetNX("stayzen:joblock:b1", "h2", 30*time.Second).SetVal(false)
	contender := &Lock{Key: "b1", Holder: "h2", AcquiredAt: time.Now(), TTL: 30 * time.Second}
	if err := store.TryAcquire(ctx, contender); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRedisStore_Release(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectEvalSha(releaseScript.Hash(), []string{"stayzen:joblock:b1"}, "h1").SetVal(int64(1))
	if err := store.Release(ctx, "b1", "h1"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// Releasing a re-owned lock deletes nothing; still not an error.
	mock.ExpectEvalSha(releaseScript.Hash(), []string{"stayzen:joblock:b1"}, "h1").SetVal(int64(0))
	if err := store.Release(ctx, "b1", "h1"); err != nil {
		t.Fatalf("idempotent Release: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRedisStore_ForceRelease(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectDel("stayzen:joblock:b1").SetVal(1)
	if err := store.ForceRelease(ctx, "b1"); err != nil {
		t.Fatalf("ForceRelease: %v", err)
	}

	mock.ExpectDel("stayzen:joblock:gone").SetVal(0)
	if err := store.ForceRelease(ctx, "gone"); !errors.Is(err, ErrLockNotFound) {
		t.Fatalf("expected ErrLockNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRedisStore_List(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectScan(0, "stayzen:joblock:*", 100).SetVal([]string{"stayzen:joblock:b1"}, 0)
	mock.ExpectGet("stayzen:joblock:b1").SetVal("h1")
	mock.ExpectPTTL("stayzen:joblock:b1").SetVal(25 * time.Second)

	locks, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(locks) != 1 || locks[0].Key != "b1" || locks[0].Holder != "h1" {
		t.Fatalf("unexpected locks: %+v", locks)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
