package cache_test

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/KarpelesLab/lsmtfs/cache"
)

// countingSource wraps a byte slice and counts how many Pread calls it
// serves, so tests can assert on cache hit/miss behavior.
type countingSource struct {
	data  []byte
	preads int64
}

func (s *countingSource) Pread(buf []byte, offset int64) (int, error) {
	atomic.AddInt64(&s.preads, 1)
	if int(offset) >= len(s.data) {
		return 0, nil
	}
	n := copy(buf, s.data[offset:])
	return n, nil
}

func (s *countingSource) Size() int64 { return int64(len(s.data)) }

func TestBlockCacheServesFromCacheOnSecondRead(t *testing.T) {
	src := &countingSource{data: bytes.Repeat([]byte{'K'}, 4096)}
	c, err := cache.NewBlockCache(src, 1024, 1<<20)
	if err != nil {
		t.Fatalf("NewBlockCache: %s", err)
	}

	buf := make([]byte, 512)
	if _, err := c.Pread(buf, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Pread(buf, 0); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt64(&src.preads) != 1 {
		t.Fatalf("source Pread called %d times, want 1 (second read should hit cache)", src.preads)
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{'K'}, 512)) {
		t.Error("cached readback mismatch")
	}
}

func TestBlockCacheSpansMultipleRefillUnits(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}
	src := &countingSource{data: data}
	c, err := cache.NewBlockCache(src, 1024, 1<<20)
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 2000)
	n, err := c.Pread(buf, 500)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2000 {
		t.Fatalf("Pread returned %d, want 2000", n)
	}
	if !bytes.Equal(buf, data[500:2500]) {
		t.Error("cross-refill-unit read mismatch")
	}
}

func TestBlockCacheSingleflightDedup(t *testing.T) {
	src := &countingSource{data: bytes.Repeat([]byte{'D'}, 8192)}
	c, err := cache.NewBlockCache(src, 4096, 1<<20)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, 100)
			_, _ = c.Pread(buf, 0)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&src.preads); got != 1 {
		t.Errorf("source Pread called %d times under concurrent load, want exactly 1 (singleflight dedup)", got)
	}
}

func TestBlockCacheInvalidateForcesRefetch(t *testing.T) {
	src := &countingSource{data: bytes.Repeat([]byte{'V'}, 4096)}
	c, err := cache.NewBlockCache(src, 1024, 1<<20)
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 100)
	if _, err := c.Pread(buf, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate(0, -1); err != nil {
		t.Fatalf("Invalidate: %s", err)
	}
	if _, err := c.Pread(buf, 0); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt64(&src.preads) != 2 {
		t.Fatalf("source Pread called %d times, want 2 (one before, one after invalidate)", src.preads)
	}
}

func TestBlockCacheEvictsUnderCapacity(t *testing.T) {
	src := &countingSource{data: bytes.Repeat([]byte{'E'}, 16384)}
	// capacity smaller than the full source: forces eviction as slots fill.
	c, err := cache.NewBlockCache(src, 1024, 2048)
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 100)
	for off := int64(0); off < 16384; off += 1024 {
		if _, err := c.Pread(buf, off); err != nil {
			t.Fatal(err)
		}
	}
	// Re-reading the first slot after filling many more than capacity
	// allows should miss the cache (evicted), causing another source read.
	before := atomic.LoadInt64(&src.preads)
	if _, err := c.Pread(buf, 0); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt64(&src.preads) == before {
		t.Error("expected the first slot to have been evicted and refetched")
	}
}
