package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFillComputesItemsAndSavings(t *testing.T) {
	orig := decimal.NewFromInt(1500)
	o := Order{Items: []Item{
		{Quantity: 2, Price: decimal.NewFromInt(1000), OriginalPrice: &orig},
		{Quantity: 1, Price: decimal.NewFromInt(300)},
	}}
	o.Fill()
	assert.Equal(t, 3, o.TotalItems)
	assert.True(t, decimal.NewFromInt(1000).Equal(o.TotalSavings))
	assert.NotNil(t, o.StatusHistory)
}

func TestStatusRules(t *testing.T) {
	assert.True(t, Cancellable(StatusPending))
	assert.True(t, Cancellable(StatusConfirmed))
	assert.False(t, Cancellable(StatusShipped))
	assert.True(t, Final(StatusCancelled))
	assert.True(t, Final(StatusReturned))
	assert.False(t, Final(StatusDelivered))
}
