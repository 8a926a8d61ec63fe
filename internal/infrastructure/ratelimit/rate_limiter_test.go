package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowHonorsBurstPerKey(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)

	ok, _ := rl.Allow("member:5")
	assert.True(t, ok)
	ok, _ = rl.Allow("member:5")
	assert.True(t, ok)

	ok, wait := rl.Allow("member:5")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	ok, _ = rl.Allow("member:9")
	assert.True(t, ok, "keys do not share buckets")
}

func TestZeroRateMeansUnlimited(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		ok, _ := rl.Allow("ip:127.0.0.1")
		assert.True(t, ok)
	}
}

func TestCleanupDropsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	rl.Allow("a")
	rl.Allow("b")
	assert.Equal(t, 2, rl.Size())

	rl.Cleanup(-time.Second)
	assert.Zero(t, rl.Size())
}
