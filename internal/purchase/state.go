package purchase

import "summit-ticketing/internal/models"

// transitions is the complete purchase state machine. Anything not listed
// here is rejected; cancelled and refunded are terminal.
var transitions = map[models.PurchaseStatus][]models.PurchaseStatus{
	models.PurchasePending:   {models.PurchasePaid, models.PurchaseCancelled},
	models.PurchasePaid:      {models.PurchaseRefunded},
	models.PurchaseCancelled: {},
	models.PurchaseRefunded:  {},
}

func KnownStatus(s models.PurchaseStatus) bool {
	_, ok := transitions[s]
	return ok
}

func CanTransition(from, to models.PurchaseStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
