package testing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
)

func TestGoroutineTest(t *testing.T) {
	gt := NewGoroutineTest(t)
	var n atomic.Int32
	for i := 0; i < 5; i++ {
		gt.Go(func() error {
			n.Add(1)
			return nil
		})
	}
	gt.Wait()
	assert.Equal(t, int32(5), n.Load())
}

func TestGoroutineTest_WithContext(t *testing.T) {
	gt := NewGoroutineTestWithTimeout(t, 5*time.Second)
	gt.GoWithContext(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
			return nil
		}
	})
	gt.Wait()
	assert.Error(t, gt.Context().Err())
}

func TestWithTimeout(t *testing.T) {
	assert.NoError(t, WithTimeout(time.Second, func() error { return nil }))

	boom := errors.New("boom")
	assert.ErrorIs(t, WithTimeout(time.Second, func() error { return boom }), boom)

	err := WithTimeout(10*time.Millisecond, func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	assert.ErrorContains(t, err, "timed out")
}

func TestEventually(t *testing.T) {
	var calls int
	require.NoError(t, Eventually(time.Second, time.Millisecond, func() bool {
		calls++
		return calls == 3
	}))
	assert.Error(t, Eventually(5*time.Millisecond, time.Millisecond, func() bool { return false }))
}

func TestGateways(t *testing.T) {
	for _, g := range Gateways() {
		t.Run(g.Name, func(t *testing.T) {
			gw := g.New(t)
			err := gw.WithTx(context.Background(), func(tx store.Tx) error {
				roots, err := tx.RootStorages()
				if err != nil {
					return err
				}
				if len(roots) != 0 {
					return errors.New("fresh gateway has storages")
				}
				return nil
			})
			require.NoError(t, err)
		})
	}
}
