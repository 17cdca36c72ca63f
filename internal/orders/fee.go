package orders

import (
	"math"

	"chatstore/internal/models"
)

// FeeCalculator computes the platform commission on completed orders.
type FeeCalculator struct {
	Rate float64
}

func NewFeeCalculator(rate float64) *FeeCalculator {
	return &FeeCalculator{Rate: rate}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// CalculateFee returns total x rate rounded to cents.
func (f *FeeCalculator) CalculateFee(total float64) float64 {
	return roundCents(total * f.Rate)
}

// Settlement is the split of a completed order.
type Settlement struct {
	Order    *models.Order
	Fee      float64
	Earnings float64
}

func (f *FeeCalculator) Settle(o *models.Order) Settlement {
	fee := f.CalculateFee(o.Total)
	return Settlement{Order: o, Fee: fee, Earnings: roundCents(o.Total - fee)}
}
