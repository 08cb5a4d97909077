package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortitude-core/fortitude/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkhead_LimitsConcurrency(t *testing.T) {
	b := NewBulkhead("test", BulkheadConfig{
		MaxConcurrentCalls: 2,
		MaxQueueDepth:      0,
	}, observability.NewNoopLogger(), observability.NewNoopMetricsClient())
	defer b.Close()

	var active, maxActive atomic.Int32
	block := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
				n := active.Add(1)
				for {
					cur := maxActive.Load()
					if n <= cur || maxActive.CompareAndSwap(cur, n) {
						break
					}
				}
				<-block
				active.Add(-1)
				return nil, nil
			})
		}()
	}

	time.Sleep(20 * time.Millisecond)
	_, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "should not run", nil
	})
	require.ErrorIs(t, err, ErrBulkheadFull)

	close(block)
	wg.Wait()
	assert.LessOrEqual(t, maxActive.Load(), int32(2))
}

func TestBulkhead_QueuesWhenConfigured(t *testing.T) {
	b := NewBulkhead("queued", BulkheadConfig{
		MaxConcurrentCalls: 1,
		MaxQueueDepth:      2,
		QueueTimeout:       time.Second,
		EnableBackpressure: true,
	}, observability.NewNoopLogger(), observability.NewNoopMetricsClient())
	defer b.Close()

	block := make(chan struct{})
	go func() {
		_, _ = b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			<-block
			return nil, nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	resultCh := make(chan interface{}, 1)
	go func() {
		v, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return "queued-result", nil
		})
		require.NoError(t, err)
		resultCh <- v
	}()

	time.Sleep(10 * time.Millisecond)
	close(block)

	select {
	case v := <-resultCh:
		assert.Equal(t, "queued-result", v)
	case <-time.After(2 * time.Second):
		t.Fatal("queued operation never completed")
	}
}

func TestBulkheadManager_GetOrCreate(t *testing.T) {
	mgr := NewBulkheadManager(DefaultBulkheadConfigs, observability.NewNoopLogger(), observability.NewNoopMetricsClient())
	defer mgr.Close()

	a := mgr.GetBulkhead("provider_fanout")
	b := mgr.GetBulkhead("provider_fanout")
	assert.Same(t, a, b)

	stats := mgr.GetAllStats()
	assert.Contains(t, stats, "provider_fanout")
}
