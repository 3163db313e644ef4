package gate

import (
	"sync"
	"time"
)

// rollingCounter counts events over a sliding window using fixed-width
// buckets. Old buckets are zeroed lazily on access; there is no background
// goroutine.
type rollingCounter struct {
	mu        sync.Mutex
	buckets   []int64
	bucketDur time.Duration
	lastIdx   int64
}

// newRollingCounter covers window with the given number of buckets.
func newRollingCounter(window time.Duration, buckets int) *rollingCounter {
	if buckets <= 0 {
		buckets = 60
	}
	return &rollingCounter{
		buckets:   make([]int64, buckets),
		bucketDur: window / time.Duration(buckets),
	}
}

func (c *rollingCounter) Inc(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.advance(now)
	c.buckets[idx%int64(len(c.buckets))]++
}

func (c *rollingCounter) Sum(now time.Time) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance(now)
	var sum int64
	for _, b := range c.buckets {
		sum += b
	}
	return sum
}

// advance zeroes buckets that have rotated out since the last access and
// returns the current absolute bucket index. Called with c.mu held.
func (c *rollingCounter) advance(now time.Time) int64 {
	idx := now.UnixNano() / int64(c.bucketDur)
	if c.lastIdx == 0 {
		c.lastIdx = idx
		return idx
	}
	n := int64(len(c.buckets))
	if idx > c.lastIdx {
		steps := idx - c.lastIdx
		if steps > n {
			steps = n
		}
		for i := int64(1); i <= steps; i++ {
			c.buckets[(c.lastIdx+i)%n] = 0
		}
		c.lastIdx = idx
	}
	return c.lastIdx
}
