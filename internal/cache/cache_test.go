package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot(t *testing.T) {
	var s Snapshot[[]string]
	v, ok := s.Load()
	assert.False(t, ok)
	assert.Nil(t, v)

	s.Store([]string{"a"})
	v, ok = s.Load()
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, v)
}

func TestSnapshot_ConcurrentAccess(t *testing.T) {
	var s Snapshot[int]
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) { defer wg.Done(); s.Store(n) }(i)
		go func() { defer wg.Done(); _, _ = s.Load() }()
	}
	wg.Wait()
	_, ok := s.Load()
	assert.True(t, ok)
}
