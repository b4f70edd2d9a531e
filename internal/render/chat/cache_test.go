package chat

import (
	"sync"
	"testing"
)

func key(id int64) BlockKey {
	return BlockKey{MessageID: id, Width: 80}
}

func TestBlockCache_PutAndGet(t *testing.T) {
	cache := NewBlockCache(3)

	cache.Put(key(1), &MessageBlock{MessageID: 1, Rendered: "block1", Height: 5})
	cache.Put(key(2), &MessageBlock{MessageID: 2, Rendered: "block2", Height: 3})

	if got := cache.Get(key(1)); got == nil || got.MessageID != 1 {
		t.Errorf("Get(1) = %v, want block1", got)
	}
	if got := cache.Get(key(2)); got == nil || got.MessageID != 2 {
		t.Errorf("Get(2) = %v, want block2", got)
	}
	if got := cache.Get(key(3)); got != nil {
		t.Errorf("Get(3) = %v, want nil", got)
	}
	if got := cache.Get(BlockKey{MessageID: 1, Width: 120}); got != nil {
		t.Errorf("Get at another width = %v, want nil", got)
	}
}

func TestBlockCache_LRUEviction(t *testing.T) {
	cache := NewBlockCache(3)

	cache.Put(key(1), &MessageBlock{MessageID: 1})
	cache.Put(key(2), &MessageBlock{MessageID: 2})
	cache.Put(key(3), &MessageBlock{MessageID: 3})

	cache.Get(key(1))
	cache.Put(key(4), &MessageBlock{MessageID: 4})

	for _, id := range []int64{1, 3, 4} {
		if cache.Get(key(id)) == nil {
			t.Errorf("block %d should still be cached", id)
		}
	}
	if cache.Get(key(2)) != nil {
		t.Error("block 2 should have been evicted")
	}
}

func TestBlockCache_Update(t *testing.T) {
	cache := NewBlockCache(3)

	cache.Put(key(1), &MessageBlock{MessageID: 1, Rendered: "original"})
	cache.Put(key(1), &MessageBlock{MessageID: 1, Rendered: "updated"})

	if got := cache.Get(key(1)); got == nil || got.Rendered != "updated" {
		t.Errorf("Get(1).Rendered = %v, want 'updated'", got)
	}
	if cache.Size() != 1 {
		t.Errorf("Size() = %d, want 1", cache.Size())
	}
}

func TestBlockCache_RemoveAllWidths(t *testing.T) {
	cache := NewBlockCache(10)

	cache.Put(BlockKey{MessageID: 1, Width: 80}, &MessageBlock{MessageID: 1})
	cache.Put(BlockKey{MessageID: 1, Width: 120}, &MessageBlock{MessageID: 1})
	cache.Put(key(2), &MessageBlock{MessageID: 2})

	cache.Remove(1)

	if cache.Size() != 1 {
		t.Errorf("Size() after Remove = %d, want 1", cache.Size())
	}
	if cache.Get(key(2)) == nil {
		t.Error("unrelated block was removed")
	}
}

func TestBlockCache_Clear(t *testing.T) {
	cache := NewBlockCache(10)
	for i := int64(0); i < 5; i++ {
		cache.Put(key(i), &MessageBlock{MessageID: i})
	}

	cache.Clear()

	if cache.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", cache.Size())
	}
	for i := int64(0); i < 5; i++ {
		if cache.Get(key(i)) != nil {
			t.Errorf("block %d should be gone after Clear", i)
		}
	}
}

func TestBlockCache_ConcurrentAccess(t *testing.T) {
	cache := NewBlockCache(100)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			cache.Put(key(int64(i%100)), &MessageBlock{MessageID: int64(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			cache.Get(key(int64(i % 100)))
		}
	}()
	wg.Wait()
}
