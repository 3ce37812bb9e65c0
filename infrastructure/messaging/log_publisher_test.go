package messaging

import (
	"context"
	"testing"
	"time"

	"librefind/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	at := time.Unix(1700000000, 0)
	require.NoError(t, p.PublishBatch(context.Background(), []events.DomainEvent{
		events.NewProposalCreated("p1", "com.whatsapp", "signal", "u1", at),
		events.NewFeedbackVoted("f1", "signal", "u2", at),
	}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "proposal.created", entries[0].ContextMap()["eventType"])
	assert.Equal(t, "f1", entries[1].ContextMap()["aggregateID"])
}
