// Package cache provides the L1 data cache model using Akita cache components.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// HitLatency in cycles
	HitLatency uint64
	// MissLatency in cycles (includes memory access time)
	MissLatency uint64
	// MSHREntries bounds the number of lines being filled at once.
	MSHREntries int
}

// DefaultL1DConfig returns the default configuration for the L1 data cache:
// 4 KiB, 4-way, 64 B lines, 2-cycle hits and a 20-cycle memory behind it.
func DefaultL1DConfig() Config {
	return Config{
		Size:          4 * 1024,
		Associativity: 4,
		BlockSize:     64,
		HitLatency:    2,
		MissLatency:   22,
		MSHREntries:   4,
	}
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the line was present and filled.
	Hit bool
	// MSHRHit indicates the line was still being filled by an earlier miss.
	MSHRHit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Data is the data read (for load operations).
	Data uint64
	// Evicted is true if a valid block was evicted.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint64
}

// Cache is a write-back, write-allocate L1 cache. Data moves functionally
// at access time; the MSHR only shapes timing, so an access to a line that
// is still being filled completes when the fill does.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Lines with a fill in flight, and the cycle each fill completes.
	mshr   akitacache.MSHR
	fillAt map[uint64]uint64

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]byte

	stats Statistics

	backing BackingStore
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	MSHRHits   uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns hits (including MSHR hits) over all accesses.
func (s Statistics) HitRate() float64 {
	total := s.Reads + s.Writes
	if total == 0 {
		return 0
	}
	return float64(s.Hits+s.MSHRHits) / float64(total)
}

// BackingStore interface for the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches data from the backing store.
	Read(addr uint64, size int) []byte
	// Write stores data to the backing store.
	Write(addr uint64, data []byte)
}

// New creates a new cache with the given configuration.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	mshrEntries := config.MSHREntries
	if mshrEntries <= 0 {
		mshrEntries = 1
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		mshr:      akitacache.NewMSHR(mshrEntries),
		fillAt:    make(map[uint64]uint64),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
}

// CanAccept reports whether an access to addr can start now. Only a miss
// that needs a new MSHR entry while all entries are busy is refused.
func (c *Cache) CanAccept(addr uint64) bool {
	if !c.mshr.IsFull() {
		return true
	}
	blockAddr := c.blockAddr(addr)
	if c.mshr.Query(0, blockAddr) != nil {
		return true
	}
	block := c.directory.Lookup(0, blockAddr)
	return block != nil && block.IsValid
}

// Tick retires fills that have completed by cycle now.
func (c *Cache) Tick(now uint64) {
	for blockAddr, at := range c.fillAt {
		if at <= now {
			c.mshr.Remove(0, blockAddr)
			delete(c.fillAt, blockAddr)
		}
	}
}

// Read performs a cache read of size bytes at cycle now. An access that
// crosses a line boundary touches both lines and completes with the later.
func (c *Cache) Read(addr uint64, size int, now uint64) AccessResult {
	c.stats.Reads++

	var result AccessResult
	c.eachLine(addr, size, false, now, func(line []byte, offset uint64, shift, n int, r AccessResult) {
		r.Data = extractData(line, offset, n) << (shift * 8)
		result = merge(result, r, shift == 0)
	})
	return result
}

// Write performs a cache write of the low size bytes of data at cycle now.
func (c *Cache) Write(addr uint64, size int, data uint64, now uint64) AccessResult {
	c.stats.Writes++

	var result AccessResult
	c.eachLine(addr, size, true, now, func(line []byte, offset uint64, shift, n int, r AccessResult) {
		storeData(line, offset, n, data>>(shift*8))
		result = merge(result, r, shift == 0)
	})
	return result
}

// eachLine splits an access at line boundaries and calls fn with each
// line's data, the offset inside it, the byte position of the piece
// within the access and its length. Written lines are marked dirty before
// the next line is looked up, so a fill that evicts them writes them back.
func (c *Cache) eachLine(
	addr uint64, size int, write bool, now uint64,
	fn func(line []byte, offset uint64, shift, n int, r AccessResult),
) {
	bs := uint64(c.config.BlockSize)
	for shift := 0; shift < size; {
		a := addr + uint64(shift)
		offset := a % bs
		n := min(size-shift, int(bs-offset))

		block, r := c.access(a, now)
		fn(c.dataStore[c.blockIndex(block)], offset, shift, n, r)
		if write {
			block.IsDirty = true
		}
		shift += n
	}
}

// merge folds the result of one line of an access into the total.
func merge(total, r AccessResult, first bool) AccessResult {
	if first {
		return r
	}
	total.Hit = total.Hit && r.Hit
	total.MSHRHit = total.MSHRHit || r.MSHRHit
	total.Latency = max(total.Latency, r.Latency)
	total.Data |= r.Data
	if r.Evicted {
		total.Evicted, total.EvictedAddr = true, r.EvictedAddr
	}
	return total
}

// CanAcceptRange reports whether every line touched by an access of size
// bytes at addr can start now.
func (c *Cache) CanAcceptRange(addr uint64, size int) bool {
	last := addr + uint64(max(size, 1)) - 1
	if c.blockAddr(addr) == c.blockAddr(last) {
		return c.CanAccept(addr)
	}
	return c.CanAccept(addr) && c.CanAccept(last)
}

// access finds or fills the line holding addr and computes the latency.
func (c *Cache) access(addr uint64, now uint64) (*akitacache.Block, AccessResult) {
	blockAddr := c.blockAddr(addr)
	block := c.directory.Lookup(0, blockAddr)

	if block != nil && block.IsValid {
		c.directory.Visit(block)

		if at, pending := c.fillAt[blockAddr]; pending && at > now {
			c.stats.MSHRHits++
			latency := at - now
			if latency < c.config.HitLatency {
				latency = c.config.HitLatency
			}
			return block, AccessResult{MSHRHit: true, Latency: latency}
		}

		c.stats.Hits++
		return block, AccessResult{Hit: true, Latency: c.config.HitLatency}
	}

	c.stats.Misses++
	return c.fill(blockAddr, now)
}

// fill brings blockAddr into the cache, writing back a dirty victim.
func (c *Cache) fill(blockAddr uint64, now uint64) (*akitacache.Block, AccessResult) {
	result := AccessResult{Latency: c.config.MissLatency}

	victim := c.directory.FindVictim(blockAddr)
	victimData := c.dataStore[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag

		if victim.IsDirty && c.backing != nil {
			c.stats.Writebacks++
			c.backing.Write(victim.Tag, victimData)
		}
		if c.mshr.Query(0, victim.Tag) != nil {
			c.mshr.Remove(0, victim.Tag)
			delete(c.fillAt, victim.Tag)
		}
	}

	if c.backing != nil {
		copy(victimData, c.backing.Read(blockAddr, c.config.BlockSize))
	} else {
		clear(victimData)
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	if !c.mshr.IsFull() {
		c.mshr.Add(0, blockAddr)
		c.fillAt[blockAddr] = now + c.config.MissLatency
	}

	return victim, result
}

// PendingFills returns the number of lines with a fill in flight.
func (c *Cache) PendingFills() int {
	return len(c.mshr.AllEntries())
}

// Invalidate marks a cache line as invalid without writeback.
func (c *Cache) Invalidate(addr uint64) {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush writes back all dirty blocks and invalidates them.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty && c.backing != nil {
				c.backing.Write(block.Tag, c.dataStore[c.blockIndex(block)])
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all cache lines without writeback.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.mshr.Reset()
	c.fillAt = make(map[uint64]uint64)
	c.stats = Statistics{}
}

func extractData(data []byte, offset uint64, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}

	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

func storeData(data []byte, offset uint64, size int, value uint64) {
	if data == nil || int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
