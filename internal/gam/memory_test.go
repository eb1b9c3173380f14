package gam

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_TargetingUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("root")

	k, err := m.CreateTargetingKey(ctx, "pwtecp")
	require.NoError(t, err)
	_, err = m.CreateTargetingKey(ctx, "pwtecp")
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Fault, "NOT_UNIQUE")

	found, err := m.FindTargetingKey(ctx, "pwtecp")
	require.NoError(t, err)
	assert.Equal(t, k.ID, found.ID)

	v, err := m.CreateTargetingValue(ctx, k.ID, "5.", "PREFIX")
	require.NoError(t, err)
	got, err := m.FindTargetingValue(ctx, k.ID, "5.")
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, "PREFIX", got.MatchType)

	_, err = m.CreateTargetingValue(ctx, 1, "x", "EXACT")
	assert.Error(t, err, "unknown key must be rejected")
}

func TestMemory_FailOn(t *testing.T) {
	m := NewMemory("root")
	boom := errors.New("boom")
	m.FailOn = func(method string) error {
		if method == "createLineItems" {
			return boom
		}
		return nil
	}
	_, err := m.CreateLineItems(context.Background(), []LineItem{{Name: "x"}})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.Calls["createLineItems"])
}

func TestMemory_FindLineItemsLike(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("root")
	_, err := m.CreateLineItems(ctx, []LineItem{
		{OrderID: 1, Name: "Top Bid: HB $1.00", LineItemType: "PRICE_PRIORITY"},
		{OrderID: 1, Name: "Top Bid: HB $1.10", LineItemType: "STANDARD"},
		{OrderID: 2, Name: "Top Bid: HB $1.20", LineItemType: "PRICE_PRIORITY"},
		{OrderID: 1, Name: "house", LineItemType: "PRICE_PRIORITY"},
	})
	require.NoError(t, err)

	got, err := m.FindLineItems(ctx, LineItemFilter{OrderID: 1, NameLike: "Top Bid%", LineItemType: "PRICE_PRIORITY"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Top Bid: HB $1.00", got[0].Name)

	n, err := m.CountLineItems(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMemory_UpdateUnknownLineItem(t *testing.T) {
	m := NewMemory("root")
	_, err := m.UpdateLineItems(context.Background(), []LineItem{{ID: 99}})
	var re *RemoteError
	require.ErrorAs(t, err, &re)
}
