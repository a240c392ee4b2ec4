//go:build integration || e2e

package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redis/v8"

	"github.com/nimbusvm/clusterconf/pkg/entity"
)

// lockD's flat Redis key namespace, mirrored here so fixtures can seed or
// inspect state without going through the Client's locking rules.
const (
	keyConfigBlob    = "lockd:config"
	keyConfigVersion = "lockd:config:serial"
	keyExclHolder    = "lockd:lock:excl"
	keySharedHolder  = "lockd:lock:shared"
)

// SeedConfig writes graph directly to the LockD config keys, bypassing any
// locking. Tests use this to establish a known starting state before
// exercising a Store or Client against it.
func SeedConfig(t *testing.T, addr string, db int, graph *entity.ConfigData) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	ctx := context.Background()

	data, err := json.Marshal(graph)
	if err != nil {
		t.Fatalf("marshaling seed graph: %v", err)
	}

	pipe := client.TxPipeline()
	pipe.Set(ctx, keyConfigBlob, data, 0)
	pipe.Set(ctx, keyConfigVersion, graph.Version, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		t.Fatalf("seeding lockd config: %v", err)
	}
}

// FlushDB removes every key in db, used between tests to guarantee
// isolation from any state a prior test left behind.
func FlushDB(t *testing.T, addr string, db int) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flushing test db %d: %v", db, err)
	}
}

// ReadRawConfig fetches and decodes the config blob directly, without
// going through a lockd.Client, for assertions that want to bypass the
// client's own read path.
func ReadRawConfig(t *testing.T, addr string, db int) *entity.ConfigData {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	data, err := client.Get(context.Background(), keyConfigBlob).Bytes()
	if err != nil {
		t.Fatalf("reading seeded config: %v", err)
	}

	var graph entity.ConfigData
	if err := json.Unmarshal(data, &graph); err != nil {
		t.Fatalf("decoding seeded config: %v", err)
	}
	return &graph
}

// LockHolders returns the current exclusive lock holder (empty string if
// unheld) and the set of shared lock holders, for tests asserting on lock
// state after a session closes or crashes.
func LockHolders(t *testing.T, addr string, db int) (exclusive string, shared []string) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	ctx := context.Background()

	exclusive, err := client.Get(ctx, keyExclHolder).Result()
	if err == redis.Nil {
		exclusive = ""
	} else if err != nil {
		t.Fatalf("reading exclusive lock holder: %v", err)
	}

	holders, err := client.HKeys(ctx, keySharedHolder).Result()
	if err != nil {
		t.Fatalf("reading shared lock holders: %v", err)
	}
	return exclusive, holders
}

// ClearLocks forcibly releases both the exclusive and shared lock keys,
// used to reset lock state between test cases without waiting out a TTL.
func ClearLocks(t *testing.T, addr string, db int) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	if err := client.Del(context.Background(), keyExclHolder, keySharedHolder).Err(); err != nil {
		t.Fatalf("clearing lockd locks: %v", err)
	}
}
