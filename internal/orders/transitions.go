package orders

import "chatstore/internal/models"

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending: {models.OrderPaid, models.OrderReady, models.OrderCancelled},
	models.OrderPaid:    {models.OrderReady, models.OrderCancelled},
	models.OrderReady:   {models.OrderCompleted, models.OrderCancelled},
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// sourcesOf lists every status that may move to `to`.
func sourcesOf(to models.OrderStatus) []models.OrderStatus {
	var out []models.OrderStatus
	for _, from := range []models.OrderStatus{models.OrderPending, models.OrderPaid, models.OrderReady} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
