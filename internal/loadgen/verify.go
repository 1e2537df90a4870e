package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/okian/proofkit/internal/domain/model"
)

// ErrMismatch is returned when the ledger disagrees with what was accepted.
var ErrMismatch = errors.New("ledger mismatch")

// awaitLedger polls every artifact's stats until they match the tally or
// SettleTimeout passes. Events are recorded asynchronously, so early polls
// may lag behind.
func awaitLedger(ctx context.Context, c *client, cfg *Config, t *tally) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.SettleTimeout)
	defer cancel()

	pending := make([]string, 0, len(t.want))
	for id := range t.want {
		pending = append(pending, id)
	}
	sort.Strings(pending)

	var last error
	for {
		next := pending[:0]
		for _, id := range pending {
			err := checkArtifact(ctx, c, id, t.want[id])
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				if last != nil {
					err = last
				}
				return fmt.Errorf("%d artifacts unsettled: %w", len(pending), err)
			}
			last = err
			next = append(next, id)
		}
		pending = next
		if len(pending) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			if last == nil {
				last = ctx.Err()
			}
			return fmt.Errorf("%d artifacts unsettled: %w", len(pending), last)
		case <-time.After(cfg.PollInterval):
		}
	}
}

func checkArtifact(ctx context.Context, c *client, id string, want *expected) error {
	var st model.LedgerStats
	path := "/artifacts/" + id + "/stats"
	status, err := c.do(ctx, http.MethodGet, path, nil, &st)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return unexpected(http.MethodGet, path, status)
	}

	sum := 0
	for _, n := range st.ByAction {
		sum += n
	}
	switch {
	case st.Total != want.total:
		return fmt.Errorf("%w: artifact %s total %d, want %d", ErrMismatch, id, st.Total, want.total)
	case st.UniqueVerifiers != len(want.actors):
		return fmt.Errorf("%w: artifact %s unique verifiers %d, want %d", ErrMismatch, id, st.UniqueVerifiers, len(want.actors))
	case sum != st.Total:
		return fmt.Errorf("%w: artifact %s action counts sum to %d, total %d", ErrMismatch, id, sum, st.Total)
	}
	return nil
}
