package listener

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Trigger requests a decision cycle.
type Trigger interface {
	Trigger() bool
}

// ListenAndTrigger LISTENs on channel and requests a cycle for every
// notification burst. It reconnects with jittered backoff until ctx is done.
func ListenAndTrigger(ctx context.Context, pool *pgxpool.Pool, t Trigger, channel string, baseBackoff time.Duration) {
	for {
		err := listen(ctx, pool, t, channel)
		if ctx.Err() != nil {
			log.Info().Msg("listener stopped")
			return
		}
		backoff := jitter(baseBackoff)
		log.Error().Err(err).Str("channel", channel).Dur("retry_in", backoff).Msg("listener error")
		select {
		case <-ctx.Done():
			log.Info().Msg("listener stopped")
			return
		case <-time.After(backoff):
		}
	}
}

func listen(ctx context.Context, pool *pgxpool.Pool, t Trigger, channel string) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn for listen: %w", err)
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Info().Str("channel", channel).Msg("listening for cycle requests")

	var lastTrigger time.Time
	for {
		ntf, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("notify wait: %w", err)
		}
		if time.Since(lastTrigger) < 200*time.Millisecond {
			continue // debounce burst of notifications
		}
		lastTrigger = time.Now()
		queued := t.Trigger()
		log.Info().Str("channel", ntf.Channel).Str("payload", ntf.Payload).Bool("queued", queued).Msg("cycle requested via notify")
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
