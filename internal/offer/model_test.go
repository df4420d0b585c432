package offer_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/partsdesk/parts-broker/internal/offer"
)

func TestLockActive_Boundaries(t *testing.T) {
	holder := uuid.New()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{name: "just taken", elapsed: 0, want: true},
		{name: "one second before expiry", elapsed: 59 * time.Second, want: true},
		{name: "exactly at the TTL", elapsed: 60 * time.Second, want: true},
		{name: "one second past expiry", elapsed: 61 * time.Second, want: false},
		{name: "long stale", elapsed: time.Hour, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lockedAt := base
			o := offer.Offer{LockedBy: &holder, LockedAt: &lockedAt}

			require.Equal(t, tt.want, o.LockActive(base.Add(tt.elapsed)))
		})
	}
}

func TestLockActive_NoLease(t *testing.T) {
	var o offer.Offer
	require.False(t, o.LockActive(time.Now()))
}

func TestLockedByOther(t *testing.T) {
	holder := uuid.New()
	other := uuid.New()
	now := time.Now().UTC()
	lockedAt := now.Add(-10 * time.Second)

	o := offer.Offer{LockedBy: &holder, LockedAt: &lockedAt}

	require.True(t, o.LockedByOther(other, now))
	require.False(t, o.LockedByOther(holder, now), "holders are never blocked by their own lease")

	stale := now.Add(-offer.LockTTL - time.Second)
	o.LockedAt = &stale
	require.False(t, o.LockedByOther(other, now), "stale leases are treated as absent")
}

func TestResolvedPrice(t *testing.T) {
	item := offer.Item{Price: mustDecimal(t, "250.00")}
	require.True(t, item.ResolvedPrice().Equal(mustDecimal(t, "250.00")))

	override := mustDecimal(t, "199.00")
	item.AdminPrice = &override
	require.True(t, item.ResolvedPrice().Equal(override))
}
