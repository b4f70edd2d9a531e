package chat

import (
	"container/list"
	"sync"
)

// BlockKey identifies one rendering of a message. A message rendered at a
// different width is a different entry.
type BlockKey struct {
	MessageID int64
	Width     int
}

// BlockCache is an LRU cache for rendered MessageBlocks.
type BlockCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[BlockKey]*list.Element
	lru     *list.List
}

type cacheEntry struct {
	key   BlockKey
	block *MessageBlock
}

// NewBlockCache creates a cache holding at most maxSize blocks.
func NewBlockCache(maxSize int) *BlockCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &BlockCache{
		maxSize: maxSize,
		entries: make(map[BlockKey]*list.Element),
		lru:     list.New(),
	}
}

// Get returns the cached block for key, or nil. A hit marks the block as
// recently used.
func (c *BlockCache) Get(key BlockKey) *MessageBlock {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).block
	}
	return nil
}

// Put stores block under key, evicting the least recently used block when
// the cache is full.
func (c *BlockCache) Put(key BlockKey, block *MessageBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).block = block
		return
	}

	if c.lru.Len() >= c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			delete(c.entries, oldest.Value.(*cacheEntry).key)
			c.lru.Remove(oldest)
		}
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, block: block})
}

// Remove drops every width of messageID, e.g. after the message is
// deleted or edited.
func (c *BlockCache) Remove(messageID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.entries {
		if key.MessageID == messageID {
			delete(c.entries, key)
			c.lru.Remove(elem)
		}
	}
}

// Clear empties the cache. Call it when the theme changes.
func (c *BlockCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[BlockKey]*list.Element)
	c.lru.Init()
}

// Size returns the number of cached blocks.
func (c *BlockCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
