//go:build integration

package lockd_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nimbusvm/clusterconf/pkg/entity"
	"github.com/nimbusvm/clusterconf/pkg/lockd"
)

func testClient(t *testing.T) *lockd.Client {
	t.Helper()
	addr := os.Getenv("LOCKD_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	c := lockd.NewClient(addr, 15)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		t.Skipf("no redis reachable at %s: %v", addr, err)
	}
	return c
}

func TestExclusiveLockExcludesSecondHolder(t *testing.T) {
	c := testClient(t)
	defer c.Close()
	ctx := context.Background()

	holderA := lockd.WConfdContext{CallerID: "job-1", PID: 1}
	cluster := entity.NewCluster("cluster.example.com", "node1", "192.0.2.1", 1000)
	graph := entity.NewConfigData(cluster)

	if _, err := c.LockConfig(ctx, holderA, false, 0); err != nil {
		t.Fatalf("holderA LockConfig: %v", err)
	}
	if err := c.WriteConfigAndUnlock(ctx, holderA, graph); err != nil {
		t.Fatalf("holderA WriteConfigAndUnlock: %v", err)
	}

	if _, err := c.LockConfig(ctx, holderA, false, 0); err != nil {
		t.Fatalf("holderA relock: %v", err)
	}
	defer c.UnlockConfig(ctx, holderA)

	shortCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	holderB := lockd.WConfdContext{CallerID: "job-2", PID: 2}
	if _, err := c.LockConfig(shortCtx, holderB, false, 0); err == nil {
		t.Error("holderB acquired exclusive lock while holderA still held it")
	}
}

func TestReserveMACRejectsDuplicate(t *testing.T) {
	c := testClient(t)
	defer c.Close()
	ctx := context.Background()

	if err := c.ReserveMAC(ctx, "ec-1", "aa:bb:cc:00:00:01"); err != nil {
		t.Fatalf("first ReserveMAC: %v", err)
	}
	if err := c.ReserveMAC(ctx, "ec-2", "aa:bb:cc:00:00:01"); err == nil {
		t.Error("duplicate ReserveMAC: want ReservationError, got nil")
	}

	if err := c.DropAllReservations(ctx, "ec-1"); err != nil {
		t.Fatalf("DropAllReservations: %v", err)
	}
	if err := c.ReserveMAC(ctx, "ec-2", "aa:bb:cc:00:00:01"); err != nil {
		t.Errorf("ReserveMAC after drop: %v", err)
	}
	c.DropAllReservations(ctx, "ec-2")
}
