package compliance

import (
	"testing"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligibilityCalculator_Calculate(t *testing.T) {
	resolver := calendar.NewResolver([]calendar.Holiday{
		{Scope: "ID", Date: calendar.MustParse("2024-03-11")},
		{Scope: "ID", Date: calendar.MustParse("2024-03-29")},
		{Scope: "default", Date: calendar.MustParse("2024-03-29")},
	})
	calc := NewEligibilityCalculator(resolver)
	terminated := calendar.MustParse("2024-02-28")

	tests := []struct {
		name        string
		emp         compliance.Employee
		country     string
		leave       []calendar.Date
		want        int
		active      bool
		approximate bool
	}{
		{
			name:    "full month minus weekends and holidays",
			emp:     compliance.Employee{ID: "e1", Location: "JKT", HireDate: calendar.MustParse("2020-01-01")},
			country: "ID",
			want:    19,
			active:  true,
		},
		{
			name:    "hired mid-window is clipped to active span",
			emp:     compliance.Employee{ID: "e2", Location: "JKT", HireDate: calendar.MustParse("2024-03-13")},
			country: "ID",
			want:    12,
			active:  true,
		},
		{
			name:    "leave on a weekend is not subtracted twice",
			emp:     compliance.Employee{ID: "e3", Location: "JKT", HireDate: calendar.MustParse("2020-01-01")},
			country: "ID",
			leave:   []calendar.Date{calendar.MustParse("2024-03-20"), calendar.MustParse("2024-03-23"), calendar.MustParse("2024-03-29")},
			want:    18,
			active:  true,
		},
		{
			name:    "terminated before the window contributes nothing",
			emp:     compliance.Employee{ID: "e4", Location: "JKT", HireDate: calendar.MustParse("2020-01-01"), TerminationDate: &terminated},
			country: "ID",
			want:    0,
			active:  false,
		},
		{
			name:        "unknown calendar falls back to default and is approximate",
			emp:         compliance.Employee{ID: "e5", Location: "XYZ", HireDate: calendar.MustParse("2020-01-01")},
			country:     "ZZ",
			want:        20,
			active:      true,
			approximate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Calculate(tt.emp, tt.country, march, tt.leave)
			assert.Equal(t, tt.want, got.Count())
			assert.Equal(t, tt.active, got.IsActive)
			assert.Equal(t, tt.approximate, got.Approximate)
		})
	}
}

func TestEligibilityCalculator_MidWindowHireBreakdown(t *testing.T) {
	calc := NewEligibilityCalculator(calendar.NewResolver([]calendar.Holiday{
		{Scope: "ID", Date: calendar.MustParse("2024-03-29")},
	}))
	emp := compliance.Employee{ID: "e1", Location: "JKT", HireDate: calendar.MustParse("2024-03-13")}

	got := calc.Calculate(emp, "ID", march, nil)
	require.True(t, got.IsActive)
	assert.Equal(t, calendar.Window{From: calendar.MustParse("2024-03-13"), To: march.To}, got.Active)
	assert.Equal(t, 6, got.Weekends)
	assert.Equal(t, 1, got.Holidays)
	assert.Equal(t, 12, got.Count())
	assert.Equal(t, calendar.MustParse("2024-03-13"), got.Dates[0])
}

func TestNormalizePresence(t *testing.T) {
	d := calendar.MustParse
	events := []compliance.PresenceEvent{
		{EmployeeID: "e1", Date: d("2024-03-05"), Location: "JKT"},
		{EmployeeID: "e1", Date: d("2024-03-05"), Location: "BDG"},
		{EmployeeID: "e1", Date: d("2024-03-04")},
		{EmployeeID: "e1", Date: d("2024-02-28")},
	}
	got := NormalizePresence(events, march)
	assert.Equal(t, []calendar.Date{d("2024-03-04"), d("2024-03-05")}, got)
	assert.Empty(t, NormalizePresence(nil, march))
}
