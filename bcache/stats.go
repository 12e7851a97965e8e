package bcache

type Stats struct {
	Hits      uint64 // served from the pool
	VMHits    uint64 // served from the second-level cache
	Misses    uint64
	Reads     uint64 // single-block transport reads
	Gathers   uint64
	Scatters  uint64
	Evictions uint64
	Flushes   uint64
	Resizes   uint64
}

func (c *Cache) Stats() Stats {
	return c.stats
}
