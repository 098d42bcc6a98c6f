package domain

import "time"

// Period maps an instant to the start of the accounting period containing it.
type Period interface {
	Start(t time.Time) time.Time
	Next(start time.Time) time.Time
}

// MonthlyPeriod is the calendar month in Location (UTC when nil).
type MonthlyPeriod struct {
	Location *time.Location
}

func (p MonthlyPeriod) Start(t time.Time) time.Time {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

func (p MonthlyPeriod) Next(start time.Time) time.Time {
	return p.Start(start).AddDate(0, 1, 0)
}

// FixedPeriod slices time into Length-sized windows counted from Anchor.
type FixedPeriod struct {
	Anchor time.Time
	Length time.Duration
}

func (p FixedPeriod) Start(t time.Time) time.Time {
	if p.Length <= 0 {
		return p.Anchor
	}
	elapsed := t.Sub(p.Anchor)
	n := elapsed / p.Length
	if elapsed < 0 && elapsed%p.Length != 0 {
		n--
	}
	return p.Anchor.Add(n * p.Length)
}

func (p FixedPeriod) Next(start time.Time) time.Time {
	return p.Start(start).Add(p.Length)
}
