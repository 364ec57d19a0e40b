package cas

import (
	"container/list"
	"sync"
)

// LRUCache maps content hashes to decoded values, evicting the least
// recently used entry once it holds more than maxSize values. It is safe
// for concurrent use.
type LRUCache[V any] struct {
	mu        sync.Mutex
	cache     map[Hash]*list.Element
	evictList *list.List
	maxSize   int

	hits   int
	misses int
}

type cacheEntry[V any] struct {
	hash  Hash
	value V
}

// NewLRUCache creates a cache holding at most maxSize values
// (0 or negative means the default of 1000).
func NewLRUCache[V any](maxSize int) *LRUCache[V] {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &LRUCache[V]{
		cache:     make(map[Hash]*list.Element),
		evictList: list.New(),
		maxSize:   maxSize,
	}
}

func (l *LRUCache[V]) Get(h Hash) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if elem, ok := l.cache[h]; ok {
		l.evictList.MoveToFront(elem)
		l.hits++
		return elem.Value.(*cacheEntry[V]).value, true
	}
	l.misses++
	var zero V
	return zero, false
}

func (l *LRUCache[V]) Put(h Hash, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if elem, ok := l.cache[h]; ok {
		l.evictList.MoveToFront(elem)
		elem.Value.(*cacheEntry[V]).value = value
		return
	}
	elem := l.evictList.PushFront(&cacheEntry[V]{hash: h, value: value})
	l.cache[h] = elem
	if l.evictList.Len() > l.maxSize {
		l.evictOldest()
	}
}

// evictOldest must be called with l.mu held.
func (l *LRUCache[V]) evictOldest() {
	elem := l.evictList.Back()
	if elem != nil {
		l.evictList.Remove(elem)
		delete(l.cache, elem.Value.(*cacheEntry[V]).hash)
	}
}

type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int
	Misses  int
}

func (l *LRUCache[V]) Stats() CacheStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return CacheStats{
		Size:    len(l.cache),
		MaxSize: l.maxSize,
		Hits:    l.hits,
		Misses:  l.misses,
	}
}
