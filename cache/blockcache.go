package cache

import (
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// BlockCache presents an aligned read surface over a BlobSource, with
// an in-memory LRU keyed by refill-unit index (nothing is persisted to
// disk; the cache starts empty in every process): reads are expanded to
// refill_unit boundaries, missing units are fetched once (singleflight
// dedup across concurrent callers) and stored in the LRU media, then
// the requested sub-range is copied out.
type BlockCache struct {
	src        BlobSource
	refillUnit int64
	capacity   int64

	mu      sync.Mutex
	resident int64
	media   *lru.Cache[int64, []byte]

	fetch singleflight.Group
}

// NewBlockCache builds a BlockCache over src. refillUnit is the fetch
// granularity (typically 64 KiB, aligned to the consumer's block
// size); capacityBytes bounds resident media before LRU eviction
// kicks in.
func NewBlockCache(src BlobSource, refillUnit, capacityBytes int64) (*BlockCache, error) {
	if refillUnit <= 0 || capacityBytes <= 0 {
		return nil, invalidArg("NewBlockCache", nil)
	}
	c := &BlockCache{src: src, refillUnit: refillUnit, capacity: capacityBytes}

	media, err := lru.NewWithEvict[int64, []byte](1<<20, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.media = media
	return c, nil
}

func (c *BlockCache) onEvict(slot int64, data []byte) {
	c.resident -= int64(len(data))
}

// Pread serves count bytes at offset, fetching through to src on a
// cache miss.
func (c *BlockCache) Pread(buf []byte, offset int64) (int, error) {
	count := int64(len(buf))
	start := alignDown(offset, c.refillUnit)
	end := alignUp(offset+count, c.refillUnit)

	total := 0
	for slotOff := start; slotOff < end; slotOff += c.refillUnit {
		slot := slotOff / c.refillUnit
		data, err := c.getSlot(slot, slotOff)
		if err != nil {
			return total, err
		}

		copyFrom := offset
		if slotOff > copyFrom {
			copyFrom = slotOff
		}
		copyTo := offset + count
		if slotOff+c.refillUnit < copyTo {
			copyTo = slotOff + c.refillUnit
		}
		if copyTo <= copyFrom {
			continue
		}
		src := data[copyFrom-slotOff : copyTo-slotOff]
		n := copy(buf[copyFrom-offset:copyTo-offset], src)
		total += n
	}
	return total, nil
}

// getSlot returns the cached refill unit at slot (fetching it through
// src on a miss), coalescing concurrent fetches of the same slot.
func (c *BlockCache) getSlot(slot, slotOff int64) ([]byte, error) {
	c.mu.Lock()
	if data, ok := c.media.Get(slot); ok {
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	v, err, _ := c.fetch.Do(strconv.FormatInt(slot, 10), func() (interface{}, error) {
		c.mu.Lock()
		if data, ok := c.media.Get(slot); ok {
			c.mu.Unlock()
			return data, nil
		}
		c.mu.Unlock()

		size := c.refillUnit
		if remain := c.src.Size() - slotOff; remain < size {
			size = remain
		}
		if size <= 0 {
			return []byte{}, nil
		}
		buf := make([]byte, size)
		if _, err := c.src.Pread(buf, slotOff); err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.media.Add(slot, buf)
		c.resident += int64(len(buf))
		c.evictLocked()
		c.mu.Unlock()
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// evictLocked drops least-recently-used slots until resident bytes fit
// within capacity. Caller must hold c.mu. Eviction never blocks a read
// that already hit: it only runs after a successful fetch populates
// the media, never in the read path of a cache hit.
func (c *BlockCache) evictLocked() {
	for c.resident > c.capacity {
		_, _, ok := c.media.RemoveOldest()
		if !ok {
			return
		}
	}
}

// ReadAt satisfies io.ReaderAt (zfile.Open's and lsmt.BlobHandle's
// backing-file surfaces both accept this shape) by delegating to Pread.
func (c *BlockCache) ReadAt(p []byte, off int64) (int, error) {
	return c.Pread(p, off)
}

// Invalidate drops offset..offset+length from the cache, forcing a
// refetch on next access. length < 0 means "to end of source" (the
// fallocate(0,0,-1) convention a ZFile reader uses after a checksum
// failure); offset==0 && length<0 drops everything.
func (c *BlockCache) Invalidate(offset, length int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if offset == 0 && length < 0 {
		c.media.Purge()
		c.resident = 0
		return nil
	}

	end := offset + length
	start := alignDown(offset, c.refillUnit)
	if length < 0 {
		end = c.src.Size()
	}
	for slotOff := start; slotOff < end; slotOff += c.refillUnit {
		c.media.Remove(slotOff / c.refillUnit)
	}
	return nil
}

func alignDown(v, a int64) int64 { return v - v%a }
func alignUp(v, a int64) int64 {
	if v%a == 0 {
		return v
	}
	return v + (a - v%a)
}
