package flow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func seeded(m map[string]any) *State {
	s := NewState()
	s.Merge(m)
	return s
}

func TestState_GetSetDelete(t *testing.T) {
	s := NewState()
	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("k", 42)
	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	s.Delete("k")
	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestState_SeededAndMerge(t *testing.T) {
	s := seeded(map[string]any{"a": 1})
	s.Merge(map[string]any{"b": 2, "a": 10})
	assert.Equal(t, 2, s.Len())
	v, _ := s.Get("a")
	assert.Equal(t, 10, v)
}

func TestState_SnapshotIsCopy(t *testing.T) {
	s := seeded(map[string]any{"a": 1})
	snap := s.Snapshot()
	snap["a"] = 99
	v, _ := s.Get("a")
	assert.Equal(t, 1, v)
}

func TestState_Update(t *testing.T) {
	s := seeded(map[string]any{"n": 1})
	s.Update(func(m map[string]any) {
		m["n"] = m["n"].(int) + 1
	})
	v, _ := s.Get("n")
	assert.Equal(t, 2, v)
}

func TestState_ConcurrentAccess(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(m map[string]any) {
				n, _ := m["count"].(int)
				m["count"] = n + 1
			})
		}()
	}
	wg.Wait()
	v, _ := s.Get("count")
	assert.Equal(t, 50, v)
}

func TestCall_OutputLookup(t *testing.T) {
	outputs := []MethodOutput{
		{Name: "a", Value: 1},
		{Name: "b", Value: 2},
		{Name: "a", Value: 3},
	}
	c := NewCall("m", "a", 3, NewState(), outputs, nil)

	v, ok := c.Output("a")
	assert.True(t, ok)
	assert.Equal(t, 3, v) // latest wins

	_, ok = c.Output("ghost")
	assert.False(t, ok)
}

func TestCall_QueryWithoutEngine(t *testing.T) {
	c := NewCall("m", "", nil, NewState(), nil, nil)
	_, err := c.Query(".inputs")
	requireCode(t, err, ErrCodeValidation)
}
