package listener

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitter(t *testing.T) {
	tests := []struct {
		name string
		base time.Duration
		lo   time.Duration
		hi   time.Duration
	}{
		{"base", 2 * time.Second, time.Second, 3 * time.Second},
		{"zero falls back to one second", 0, 500 * time.Millisecond, 1500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 100; i++ {
				d := jitter(tt.base)
				assert.GreaterOrEqual(t, d, tt.lo)
				assert.LessOrEqual(t, d, tt.hi)
			}
		})
	}
}

type countingTrigger struct{ n atomic.Int32 }

func (c *countingTrigger) Trigger() bool {
	c.n.Add(1)
	return true
}

func TestListenAndTrigger(t *testing.T) {
	dsn := os.Getenv("PAUSEE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PAUSEE_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	trig := &countingTrigger{}
	done := make(chan struct{})
	go func() {
		ListenAndTrigger(ctx, pool, trig, "pausee_test_run", 50*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := pool.Exec(ctx, `SELECT pg_notify('pausee_test_run', 'manual')`)
		return err == nil && trig.n.Load() > 0
	}, 5*time.Second, 250*time.Millisecond)

	cancel()
	<-done
}
