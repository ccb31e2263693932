package monitor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadWriteRatio(t *testing.T) {
	ws := NewWorkloadStats()
	assert.Equal(t, 0.0, ws.GetReadWriteRatio())

	ws.RecordRead()
	assert.Equal(t, 100.0, ws.GetReadWriteRatio())

	ws.RecordWrite()
	ws.RecordWrite()
	assert.Equal(t, 0.5, ws.GetReadWriteRatio())
}

func TestConcurrentCounters(t *testing.T) {
	ws := NewWorkloadStats()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ws.RecordRead()
				ws.RecordHit()
				ws.RecordTableHit()
			}
			ws.RecordFlush()
		}()
	}
	wg.Wait()

	snap := ws.Snapshot()
	assert.EqualValues(t, 800, snap.ReadCount)
	assert.EqualValues(t, 800, snap.HitCount)
	assert.EqualValues(t, 800, snap.TableHitCount)
	assert.EqualValues(t, 8, snap.FlushCount)
}
