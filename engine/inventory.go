/*
inventory.go - Inventory Ledger

PURPOSE:
  Tracks each vaccine's total administered doses versus its reserved count.
  Leaf component: it depends on nothing but its store, and AddDoses never
  inspects appointments. The remaining-dose figure is always derived as
  total added minus active appointments, so it cannot drift.

SEE ALSO:
  - booking.go: Reads remaining doses inside the reservation transaction
  - schedule.go: Reports remaining doses across all vaccines
*/
package engine

import (
	"context"
	"fmt"
	"strings"
)

// InventoryLedger tracks per-vaccine dose totals.
type InventoryLedger struct {
	Store InventoryStore
}

// NewInventoryLedger creates an Inventory Ledger over the given store.
func NewInventoryLedger(store InventoryStore) *InventoryLedger {
	return &InventoryLedger{Store: store}
}

// AddDoses creates the vaccine with count doses if unknown, otherwise
// increases its total by count. A negative count fails with
// ErrInvalidArgument; zero is allowed and registers the vaccine name.
func (l *InventoryLedger) AddDoses(ctx context.Context, vaccine string, count int) error {
	vaccine = strings.TrimSpace(vaccine)
	if vaccine == "" {
		return fmt.Errorf("%w: vaccine name is required", ErrInvalidArgument)
	}
	if count < 0 {
		return fmt.Errorf("%w: dose count %d is negative", ErrInvalidArgument, count)
	}
	return l.Store.AddDoses(ctx, vaccine, count)
}

// Remaining returns the vaccine's remaining doses: total added minus active
// appointments. An unknown vaccine reports 0, not an error; the booking path
// distinguishes unknown vaccines itself.
func (l *InventoryLedger) Remaining(ctx context.Context, vaccine string) (int, error) {
	stock, ok, err := l.Store.Stock(ctx, vaccine)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return stock.Remaining(), nil
}

// Lookup returns the vaccine's stock, failing with ErrNotFound when the
// vaccine has never been added.
func (l *InventoryLedger) Lookup(ctx context.Context, vaccine string) (VaccineStock, error) {
	stock, ok, err := l.Store.Stock(ctx, vaccine)
	if err != nil {
		return VaccineStock{}, err
	}
	if !ok {
		return VaccineStock{}, fmt.Errorf("%w: vaccine %q", ErrNotFound, vaccine)
	}
	return stock, nil
}
