/*
schedule.go - Schedule Query Service

PURPOSE:
  Read-only projection over the Availability Index and the Inventory
  Ledger: "who is free on date D" and "how many doses remain per vaccine".
  Built from the same tables as the booking path but exposed as a
  reporting interface. Never mutates state.

SEE ALSO:
  - availability.go: Where freeness is derived
  - inventory.go: Where remaining doses are derived
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// VaccineReport is one vaccine's line in the schedule report. Remaining is
// clamped at zero for display; Utilization is the exact consumed/total
// ratio so reporting never shows float artifacts like 0.30000000000000004.
type VaccineReport struct {
	Name        string
	Remaining   int
	Utilization decimal.Decimal
}

// Schedule answers "who is free on date D and what doses remain".
type Schedule struct {
	Day            Date
	FreeCaregivers []string
	Doses          []VaccineReport
}

// ScheduleService is the read-only reporting interface. Both caregiver and
// patient identities may call it.
type ScheduleService struct {
	gateway Gateway
}

// NewScheduleService creates a Schedule Query Service over the gateway.
func NewScheduleService(gateway Gateway) *ScheduleService {
	return &ScheduleService{gateway: gateway}
}

// Query returns the free caregivers on day plus remaining doses across all
// vaccines. Fails with ErrUnauthenticated if no identity is attached.
func (s *ScheduleService) Query(ctx context.Context, id Identity, day Date) (Schedule, error) {
	if !id.Valid() {
		return Schedule{}, ErrUnauthenticated
	}

	free, err := NewAvailabilityIndex(s.gateway).FreeCaregivers(ctx, day)
	if err != nil {
		return Schedule{}, err
	}

	stock, err := s.gateway.AllStock(ctx)
	if err != nil {
		return Schedule{}, err
	}

	doses := make([]VaccineReport, 0, len(stock))
	for _, v := range stock {
		remaining := v.Remaining()
		if remaining < 0 {
			remaining = 0
		}
		util := decimal.Zero
		if v.Total > 0 {
			util = decimal.NewFromInt(int64(v.Consumed)).
				Div(decimal.NewFromInt(int64(v.Total))).
				Round(4)
		}
		doses = append(doses, VaccineReport{Name: v.Name, Remaining: remaining, Utilization: util})
	}

	return Schedule{Day: day, FreeCaregivers: free, Doses: doses}, nil
}
