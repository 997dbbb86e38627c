package hue

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Class is the rate class of a bridge call.
type Class int

const (
	// ClassRead covers GET calls. Reads are not subject to the light/group
	// ceilings.
	ClassRead Class = iota
	// ClassLight covers calls addressed to one light.
	ClassLight
	// ClassGroup covers calls addressed to a bridge group.
	ClassGroup
)

func (c Class) String() string {
	switch c {
	case ClassLight:
		return "light"
	case ClassGroup:
		return "group"
	default:
		return "read"
	}
}

// Default bridge ceilings.
const (
	DefaultLightRate = 10.0
	DefaultGroupRate = 1.0
)

// minBucketWait keeps the acquire loop from spinning on float rounding.
const minBucketWait = time.Millisecond

// Bucket is a token bucket driven by an injectable clock. Tokens refill
// continuously at the configured rate up to capacity and are never negative:
// a token is only taken when one is available.
type Bucket struct {
	lim   *rate.Limiter
	clock Clock
}

// NewBucket creates a full bucket.
func NewBucket(capacity int, refillPerSecond float64, clock Clock) *Bucket {
	if capacity < 1 {
		capacity = 1
	}
	if refillPerSecond <= 0 {
		refillPerSecond = float64(capacity)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Bucket{
		lim:   rate.NewLimiter(rate.Limit(refillPerSecond), capacity),
		clock: clock,
	}
}

// Take blocks until a token is available and consumes it.
// It only fails when ctx is done while waiting.
func (b *Bucket) Take(ctx context.Context) error {
	for {
		now := b.clock.Now()
		if b.lim.AllowN(now, 1) {
			return nil
		}
		// Another acquirer may take the token we waited for; loop and re-check.
		if err := b.clock.Sleep(ctx, b.waitFor(now)); err != nil {
			return err
		}
	}
}

// Tokens returns the number of tokens available now.
func (b *Bucket) Tokens() float64 {
	return b.lim.TokensAt(b.clock.Now())
}

// Capacity returns the bucket size.
func (b *Bucket) Capacity() int {
	return b.lim.Burst()
}

func (b *Bucket) waitFor(now time.Time) time.Duration {
	missing := 1 - b.lim.TokensAt(now)
	if missing <= 0 {
		return minBucketWait
	}
	d := time.Duration(missing / float64(b.lim.Limit()) * float64(time.Second))
	if d < minBucketWait {
		d = minBucketWait
	}
	return d
}

// RateConfig holds the per-class ceilings, in operations per second.
type RateConfig struct {
	LightPerSecond float64
	GroupPerSecond float64
}

// Limiter enforces the bridge's two independent ceilings. Group calls are
// additionally serialized: the group slot is held until the caller releases
// it after the HTTP call has completed, since the bridge processes group
// commands one at a time. The next group call also waits one group interval
// after the previous one completed, so spacing holds on the wire regardless
// of how long connecting took.
type Limiter struct {
	light     *Bucket
	group     *Bucket
	groupSlot chan struct{}
	clock     Clock

	// groupInterval is 1/GroupPerSecond; groupDone is guarded by groupSlot.
	groupInterval time.Duration
	groupDone     time.Time
}

// NewLimiter creates a limiter. Zero rates fall back to the defaults.
func NewLimiter(cfg RateConfig, clock Clock) *Limiter {
	if cfg.LightPerSecond <= 0 {
		cfg.LightPerSecond = DefaultLightRate
	}
	if cfg.GroupPerSecond <= 0 {
		cfg.GroupPerSecond = DefaultGroupRate
	}
	if clock == nil {
		clock = SystemClock{}
	}
	lightCap := int(math.Ceil(cfg.LightPerSecond))

	return &Limiter{
		light:         NewBucket(lightCap, cfg.LightPerSecond, clock),
		group:         NewBucket(1, cfg.GroupPerSecond, clock),
		groupSlot:     make(chan struct{}, 1),
		clock:         clock,
		groupInterval: time.Duration(float64(time.Second) / cfg.GroupPerSecond),
	}
}

func noRelease() {}

// Acquire waits for a token of the given class. The returned release func
// must be called once the call guarded by the token has finished; it is a
// no-op for light and read classes.
func (l *Limiter) Acquire(ctx context.Context, class Class) (func(), error) {
	switch class {
	case ClassLight:
		if err := l.light.Take(ctx); err != nil {
			return noRelease, err
		}
		return noRelease, nil

	case ClassGroup:
		select {
		case l.groupSlot <- struct{}{}:
		case <-ctx.Done():
			return noRelease, ctx.Err()
		}
		if err := l.group.Take(ctx); err != nil {
			<-l.groupSlot
			return noRelease, err
		}
		if !l.groupDone.IsZero() {
			if wait := l.groupDone.Add(l.groupInterval).Sub(l.clock.Now()); wait > 0 {
				if err := l.clock.Sleep(ctx, wait); err != nil {
					<-l.groupSlot
					return noRelease, err
				}
			}
		}
		var once sync.Once
		return func() {
			once.Do(func() {
				l.groupDone = l.clock.Now()
				<-l.groupSlot
			})
		}, nil

	default:
		return noRelease, nil
	}
}
