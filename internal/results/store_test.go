package results

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetAndGet(t *testing.T) {
	t.Parallel()

	s := New()

	_, ok := s.Get("first")
	assert.False(t, ok)

	s.Set(Outcome{Stage: "first", ExitCode: 0})
	o, ok := s.Get("first")
	require.True(t, ok)
	assert.True(t, o.OK())
}

func TestStore_AllPreservesFirstRecordedOrder(t *testing.T) {
	t.Parallel()

	s := New()
	s.Set(Outcome{Stage: "b"})
	s.Set(Outcome{Stage: "a"})
	s.Set(Outcome{Stage: "b", ExitCode: 1}) // replacement keeps position

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Stage)
	assert.Equal(t, 1, all[0].ExitCode)
	assert.Equal(t, "a", all[1].Stage)
}

func TestStore_Verdict(t *testing.T) {
	t.Parallel()

	t.Run("all stages succeeded", func(t *testing.T) {
		t.Parallel()
		s := New()
		s.Set(Outcome{Stage: "first"})
		s.Set(Outcome{Stage: "second"})
		require.NoError(t, s.Verdict())
	})

	t.Run("one stage failed by exit code", func(t *testing.T) {
		t.Parallel()
		s := New()
		s.Set(Outcome{Stage: "first"})
		s.Set(Outcome{Stage: "second", ExitCode: 1})
		err := s.Verdict()
		require.ErrorContains(t, err, "1 of 2 stage(s) failed")
		require.ErrorContains(t, err, "second")
	})

	t.Run("one stage failed by launch error", func(t *testing.T) {
		t.Parallel()
		s := New()
		s.Set(Outcome{Stage: "first", Err: errors.New("spawn failed")})
		require.Error(t, s.Verdict())
	})

	t.Run("empty store is a success", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, New().Verdict())
	})
}

func TestStore_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Set(Outcome{Stage: string(rune('a' + n))})
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.All(), 16)
	require.NoError(t, s.Verdict())
}
