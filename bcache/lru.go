package bcache

// The LRU chain links every unreferenced buffer by index. The front is the
// next victim; released buffers normally go to the rear.

func (c *Cache) lruRemove(b *Buf) {
	if b.prev != none {
		c.bufs[b.prev].next = b.next
	} else {
		c.front = b.next
	}
	if b.next != none {
		c.bufs[b.next].prev = b.prev
	} else {
		c.rear = b.prev
	}
	b.prev = none
	b.next = none
}

func (c *Cache) lruFront(b *Buf) {
	b.prev = none
	b.next = c.front
	if c.front == none {
		c.rear = b.idx
	} else {
		c.bufs[c.front].prev = b.idx
	}
	c.front = b.idx
}

func (c *Cache) lruRear(b *Buf) {
	b.next = none
	b.prev = c.rear
	if c.rear == none {
		c.front = b.idx
	} else {
		c.bufs[c.rear].next = b.idx
	}
	c.rear = b.idx
}
