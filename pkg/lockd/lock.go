package lockd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
	"github.com/nimbusvm/clusterconf/pkg/entity"
)

const (
	keyExclHolder   = "lockd:lock:excl"
	keySharedHolder = "lockd:lock:shared" // hash holder -> expiry unix ms

	lockTTL       = 60 * time.Second
	pollBaseDelay = 50 * time.Millisecond
	pollMaxDelay  = 2 * time.Second
	pollAttempts  = 200
)

// acquireExclusiveScript grants the exclusive lock to holder only when no
// other holder owns it and no shared holder's TTL is still live, pruning
// expired shared entries as it goes. Modeled directly on the teacher's
// acquireLockScript: a single atomic Lua round-trip instead of a
// check-then-set race across two commands.
var acquireExclusiveScript = redis.NewScript(`
local excl_key = KEYS[1]
local shared_key = KEYS[2]
local holder = ARGV[1]
local ttl_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])

local current = redis.call("GET", excl_key)
if current and current ~= holder then
	return 0
end

local shared = redis.call("HGETALL", shared_key)
for i = 1, #shared, 2 do
	local sholder = shared[i]
	local expiry = tonumber(shared[i+1])
	if expiry <= now_ms then
		redis.call("HDEL", shared_key, sholder)
	elseif sholder ~= holder then
		return 0
	end
end

redis.call("SET", excl_key, holder, "PX", ttl_ms)
return 1
`)

var releaseExclusiveScript = redis.NewScript(`
local excl_key = KEYS[1]
local holder = ARGV[1]
local current = redis.call("GET", excl_key)
if current == holder then
	redis.call("DEL", excl_key)
	return 1
end
return 0
`)

var acquireSharedScript = redis.NewScript(`
local excl_key = KEYS[1]
local shared_key = KEYS[2]
local holder = ARGV[1]
local ttl_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])

local current = redis.call("GET", excl_key)
if current and current ~= holder then
	return 0
end

redis.call("HSET", shared_key, holder, tostring(now_ms + ttl_ms))
return 1
`)

var releaseSharedScript = redis.NewScript(`
redis.call("HDEL", KEYS[1], ARGV[1])
return 1
`)

func holderKey(wctx WConfdContext) string {
	return fmt.Sprintf("%s|%s|%d", wctx.CallerID, wctx.LivelockPath, wctx.PID)
}

// LockConfig acquires the config-wide lock, shared or exclusive, blocking
// with randomized-jitter backoff the way the original's daemon client
// polls a contended lock rather than failing fast. When shared is true
// and the caller already holds a copy of the graph at cachedSerial, it
// returns (nil, nil) to signal "your cache is current, no refetch
// needed" instead of re-sending the whole blob.
func (c *Client) LockConfig(ctx context.Context, wctx WConfdContext, shared bool, cachedSerial int) (*entity.ConfigData, error) {
	holder := holderKey(wctx)
	script := acquireExclusiveScript
	if shared {
		script = acquireSharedScript
	}

	delay := pollBaseDelay
	for attempt := 0; attempt < pollAttempts; attempt++ {
		nowMS := time.Now().UnixMilli()
		res, err := script.Run(ctx, c.rdb, []string{keyExclHolder, keySharedHolder},
			holder, lockTTL.Milliseconds(), nowMS).Int()
		if err != nil {
			return nil, confutil.NewOpExecError(fmt.Sprintf("acquiring lockd lock: %v", err))
		}
		if res == 1 {
			break
		}
		if attempt == pollAttempts-1 {
			return nil, confutil.NewLockErrorf("timed out waiting for config lock after %d attempts", pollAttempts)
		}
		jitter := time.Duration(rand.Int63n(int64(delay)))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay/2 + jitter):
		}
		if delay < pollMaxDelay {
			delay *= 2
			if delay > pollMaxDelay {
				delay = pollMaxDelay
			}
		}
	}

	if shared {
		serial, err := c.rdb.Get(ctx, keyConfigVersion).Int()
		if err == nil && serial == cachedSerial {
			return nil, nil
		}
	}
	return c.ReadConfig(ctx)
}

// UnlockConfig releases whichever lock wctx currently holds. Releasing a
// lock that was never held, or has already expired, is a no-op, matching
// the original's tolerance for a session closing twice.
func (c *Client) UnlockConfig(ctx context.Context, wctx WConfdContext) error {
	holder := holderKey(wctx)
	if _, err := releaseExclusiveScript.Run(ctx, c.rdb, []string{keyExclHolder}, holder).Result(); err != nil {
		return confutil.NewOpExecError(fmt.Sprintf("releasing lockd exclusive lock: %v", err))
	}
	if _, err := releaseSharedScript.Run(ctx, c.rdb, []string{keySharedHolder}, holder).Result(); err != nil {
		return confutil.NewOpExecError(fmt.Sprintf("releasing lockd shared lock: %v", err))
	}
	return nil
}

func (c *Client) requireHeldExclusive(ctx context.Context, wctx WConfdContext) error {
	current, err := c.rdb.Get(ctx, keyExclHolder).Result()
	if err == redis.Nil {
		return confutil.NewLockErrorf("no exclusive config lock held")
	}
	if err != nil {
		return confutil.NewOpExecError(fmt.Sprintf("checking lockd exclusive lock: %v", err))
	}
	if current != holderKey(wctx) {
		return confutil.NewLockErrorf("exclusive config lock held by a different caller")
	}
	return nil
}
