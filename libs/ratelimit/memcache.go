package ratelimit

import (
	"strconv"
	"time"

	"github.com/rainycape/memcache"
)

// Memcache implements a fixed window rate limiter backed by memcached. A
// counter is kept per key per window and updated with memcached's atomic
// Increment so concurrent requests against the same key cannot slip past
// the cap through interleaved read-then-write updates. It allows bursting
// within a window; a sliding window over multiple intervals would smooth
// that out at the cost of a multi-get per check.
type Memcache struct {
	cli *memcache.Client
	max int
	sec int
}

// NewMemcache returns a memcached backed rate limiter allowing max requests
// every sec seconds.
func NewMemcache(cli *memcache.Client, max, sec int) *Memcache {
	return &Memcache{
		cli: cli,
		max: max,
		sec: sec,
	}
}

// Check implements KeyedRateLimiter
func (mc *Memcache) Check(prefix string, cost int) (bool, error) {
	if cost > mc.max {
		return false, nil
	}

	key := windowKey(prefix, time.Now(), mc.sec)

	var count uint64
	for {
		if v, err := mc.cli.Increment(key, uint64(cost)); err == nil {
			count = v
			break
		} else if err != memcache.ErrCacheMiss {
			return false, err
		}
		// Counter does not exist yet so add it with the initial cost. If the
		// add fails with ErrNotStored then someone beat us to it and we go
		// back around to the increment.
		err := mc.cli.Add(&memcache.Item{
			Key:        key,
			Value:      []byte(strconv.Itoa(cost)),
			Expiration: int32(mc.sec),
		})
		if err == nil {
			count = uint64(cost)
			break
		} else if err != memcache.ErrNotStored {
			return false, err
		}
	}
	return count <= uint64(mc.max), nil
}

var _ KeyedRateLimiter = (*Memcache)(nil)
