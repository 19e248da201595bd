package archive

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/orchestrator/internal/events"
	"github.com/finresearch/orchestrator/internal/store"
)

func TestNewWithEmptyBucketDisablesArchival(t *testing.T) {
	c, err := New(context.Background(), "", "us-east-1", "", "", zerolog.Nop())
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestNilClientMethodsAreNoOps(t *testing.T) {
	var c *Client

	require.NoError(t, c.ArchiveReportRun(context.Background(), store.ReportRun{ID: "r1"}))

	// Write must not panic on a nil receiver; it also must not block since
	// it would otherwise spawn a goroutine that dereferences c.
	require.NotPanics(t, func() {
		c.Write(events.BrokerEvent{
			Timestamp: time.Now(),
			Provider:  "schwab",
			RequestID: "req-1",
		})
	})
}
