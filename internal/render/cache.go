package render

import (
	"container/list"
	"strings"
	"sync"
)

// pageCache is a thread-safe LRU of rendered pages keyed by
// trade|metric|state|version. The front of order is the most recently used.
type pageCache struct {
	mu    sync.Mutex
	limit int
	order *list.List
	byKey map[string]*list.Element
}

type cachedPage struct {
	key  string
	html []byte
}

func newPageCache(limit int) *pageCache {
	return &pageCache{
		limit: limit,
		order: list.New(),
		byKey: make(map[string]*list.Element),
	}
}

func (c *pageCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byKey[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cachedPage).html, true
}

func (c *pageCache) put(key string, html []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byKey[key]; ok {
		el.Value.(*cachedPage).html = html
		c.order.MoveToFront(el)
		return
	}
	c.byKey[key] = c.order.PushFront(&cachedPage{key: key, html: html})

	for c.order.Len() > c.limit {
		c.drop(c.order.Back())
	}
}

// dropPrefix removes every page whose key starts with prefix.
func (c *pageCache) dropPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if strings.HasPrefix(el.Value.(*cachedPage).key, prefix) {
			c.drop(el)
			n++
		}
		el = next
	}
	return n
}

func (c *pageCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *pageCache) drop(el *list.Element) {
	delete(c.byKey, el.Value.(*cachedPage).key)
	c.order.Remove(el)
}
