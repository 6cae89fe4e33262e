package audit_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/internal/audit"
	"custos/pkg/requestcontext"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisher_FillsMetadataFromContext(t *testing.T) {
	inbox := make(chan audit.Event, 1)
	pub := audit.NewPublisher(inbox, discardLogger())

	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-123")
	ctx = requestcontext.WithClientMetadata(ctx, "198.51.100.7", "custos-cli/1.0")

	pub.Emit(ctx, audit.Event{
		Event:   audit.EventUserRegistered,
		Subject: "user-1",
	})

	require.Len(t, inbox, 1)
	got := <-inbox
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, audit.CategoryCompliance, got.Category)
	assert.Equal(t, "req-123", got.RequestID)
	assert.Equal(t, "198.51.100.7", got.ClientIP)
	assert.Equal(t, "custos-cli/1.0", got.UserAgent)
}

func TestPublisher_PreservesExplicitFields(t *testing.T) {
	inbox := make(chan audit.Event, 1)
	pub := audit.NewPublisher(inbox, discardLogger())

	stamped := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	pub.Emit(context.Background(), audit.Event{
		Event:     audit.EventFundsSeized,
		Category:  audit.CategorySecurity,
		Timestamp: stamped,
		RequestID: "req-explicit",
	})

	got := <-inbox
	assert.Equal(t, stamped, got.Timestamp)
	assert.Equal(t, audit.CategorySecurity, got.Category, "explicit category wins over the derived one")
	assert.Equal(t, "req-explicit", got.RequestID)
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	inbox := make(chan audit.Event, 1)
	pub := audit.NewPublisher(inbox, discardLogger())

	pub.Emit(context.Background(), audit.Event{Event: audit.EventTokensMinted})
	pub.Emit(context.Background(), audit.Event{Event: audit.EventTokensBurned})

	// The second emit must not block; only the first fits the buffer.
	require.Len(t, inbox, 1)
	got := <-inbox
	assert.Equal(t, audit.EventTokensMinted, got.Event)
}

func TestPublisher_NilReceiverIsSafe(t *testing.T) {
	var pub *audit.Publisher
	assert.NotPanics(t, func() {
		pub.Emit(context.Background(), audit.Event{Event: audit.EventStatusUpdated})
	})
}

func TestEventCategories(t *testing.T) {
	tests := []struct {
		event audit.AuditEvent
		want  audit.EventCategory
	}{
		{audit.EventOracleInitialized, audit.CategoryOperations},
		{audit.EventUserRegistered, audit.CategoryCompliance},
		{audit.EventStatusUpdated, audit.CategoryCompliance},
		{audit.EventAuthorityRegistered, audit.CategorySecurity},
		{audit.EventAuthorityDeactivated, audit.CategorySecurity},
		{audit.EventAuthorityPowersUpdated, audit.CategorySecurity},
		{audit.EventBlacklistCreated, audit.CategoryCompliance},
		{audit.EventBlacklistDeactivated, audit.CategoryCompliance},
		{audit.EventMintInitialized, audit.CategoryOperations},
		{audit.EventTokensMinted, audit.CategoryOperations},
		{audit.EventTokensBurned, audit.CategoryOperations},
		{audit.EventAccountFrozen, audit.CategorySecurity},
		{audit.EventAccountThawed, audit.CategorySecurity},
		{audit.EventFundsSeized, audit.CategoryCompliance},
		{audit.EventReserveUpdated, audit.CategoryOperations},
		{audit.EventTransferChecked, audit.CategoryCompliance},
	}
	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Category())
		})
	}

	t.Run("unknown event falls back to operations", func(t *testing.T) {
		assert.Equal(t, audit.CategoryOperations, audit.AuditEvent("made_up").Category())
	})
}
