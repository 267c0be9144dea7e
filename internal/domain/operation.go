package domain

// PurchaseOperation is one planned unit: exactly one unit of one offer for
// one account, delivered to one destination.
type PurchaseOperation struct {
	AccountID     int64 `json:"account_id"`
	DestinationID int64 `json:"destination_id"`
	OfferID       int64 `json:"offer_id"`
	Price         int64 `json:"price"`
	Supply        int64 `json:"supply"` // total supply snapshot at planning time
}

// PurchasePlan is an append-only ordered sequence of operations. Order
// encodes priority and must be preserved: execution replays it front to back.
type PurchasePlan struct {
	operations []PurchaseOperation
}

// Append adds an operation to the end of the plan.
func (p *PurchasePlan) Append(op PurchaseOperation) {
	p.operations = append(p.operations, op)
}

// Operations returns the planned operations in order.
func (p *PurchasePlan) Operations() []PurchaseOperation {
	return p.operations
}

// Len returns the number of planned operations.
func (p *PurchasePlan) Len() int {
	return len(p.operations)
}
