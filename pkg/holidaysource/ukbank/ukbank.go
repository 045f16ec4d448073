// Package ukbank implements the kitchen scheduler's HolidaysProvider
// collaborator contract (spec §6) on top of github.com/rickar/cal/v2's
// England & Wales bank-holiday calendar, for callers who want a real,
// statutory holiday source instead of the engine's own Anonymous
// Gregorian computation (pkg/kitchen/calendar.Holidays).
package ukbank

import (
	"fmt"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/gb"

	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/calendar"
)

// Provider adapts cal.BusinessCalendar to calendar.HolidaysProvider.
type Provider struct {
	businessCal *cal.BusinessCalendar
}

// New builds a Provider seeded with the England & Wales holiday set.
func New() *Provider {
	bc := cal.NewBusinessCalendar()
	bc.AddHoliday(gb.Holidays...)
	return &Provider{businessCal: bc}
}

// Holidays returns every England & Wales bank holiday falling in year,
// using the calendar's observed (substitute-day adjusted) date.
func (p *Provider) Holidays(year int) ([]calendar.Holiday, error) {
	if p == nil || p.businessCal == nil {
		return nil, fmt.Errorf("ukbank: provider not initialized")
	}

	obs := p.businessCal.Holidays(year)
	out := make([]calendar.Holiday, 0, len(obs))
	for _, h := range obs {
		out = append(out, calendar.Holiday{
			Code: h.SourceHoliday.Name,
			Date: h.Observed,
			Name: h.SourceHoliday.Name,
		})
	}
	return out, nil
}

var _ calendar.HolidaysProvider = (*Provider)(nil)
