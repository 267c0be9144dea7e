package domain

import "fmt"

// AccountSnapshot is a funded identity participating in one autobuy run.
// Balance is mutated in memory during execution and never goes negative.
type AccountSnapshot struct {
	ID          int64
	UserID      int64
	Credentials string // opaque connection credentials, not interpreted here
	Premium     bool
	Balance     int64
}

// WithBalance returns a copy of the snapshot with a refreshed balance.
func (a *AccountSnapshot) WithBalance(balance int64) *AccountSnapshot {
	if balance < 0 {
		balance = 0
	}
	cp := *a
	cp.Balance = balance
	return &cp
}

// Debit subtracts amount from the balance. Fails on negative amounts and on
// amounts exceeding the current balance.
func (a *AccountSnapshot) Debit(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("account %d: debit amount %d is negative", a.ID, amount)
	}
	if amount > a.Balance {
		return fmt.Errorf("account %d: debit %d exceeds balance %d", a.ID, amount, a.Balance)
	}
	a.Balance -= amount
	return nil
}
