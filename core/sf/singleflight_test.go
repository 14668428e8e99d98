package sf

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_dedupes(t *testing.T) {
	var (
		g     Group[int]
		calls atomic.Int32
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, _, err := g.Do("k", func() (int, error) {
				calls.Add(1)
				time.Sleep(20 * time.Millisecond)
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	close(start)
	wg.Wait()
	require.Less(t, calls.Load(), int32(10))
}

func TestGroup_error(t *testing.T) {
	var g Group[string]
	boom := errors.New("boom")
	v, _, err := g.Do("k", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	require.Empty(t, v)
}
