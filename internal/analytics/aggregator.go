package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const unknown = "Unknown"

// Report summarizes a link's clicks over a trailing window of days.
type Report struct {
	LinkID           int64           `json:"linkId"`
	PeriodDays       int             `json:"periodDays"`
	Since            time.Time       `json:"since"`
	TotalClicks      int64           `json:"totalClicks"`
	UniqueVisitors   int64           `json:"uniqueVisitors"`
	ClicksByDay      []DayCount      `json:"clicksByDay"`
	Locations        []LocationCount `json:"locations"`
	Devices          []Count         `json:"devices"`
	Browsers         []Count         `json:"browsers"`
	OperatingSystems []Count         `json:"operatingSystems"`
	MobilePercentage float64         `json:"mobilePercentage"`
	BotPercentage    float64         `json:"botPercentage"`
}

// DayCount is the number of clicks on one UTC day, formatted YYYY-MM-DD.
type DayCount struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// LocationCount is the number of clicks from one (country, city) pair.
type LocationCount struct {
	Country string  `json:"country"`
	City    *string `json:"city"`
	Clicks  int64   `json:"clicks"`
}

// Count is the number of clicks in one category.
type Count struct {
	Name   string `json:"name"`
	Clicks int64  `json:"clicks"`
}

// Export is a report together with the raw events it was built from.
type Export struct {
	Report Report       `json:"analytics"`
	Events []ClickEvent `json:"rawClicks"`
}

// Aggregator builds reports from the click log.
type Aggregator struct {
	store Store
	now   func() time.Time
}

// NewAggregator creates a new aggregator over store.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{
		store: store,
		now:   time.Now,
	}
}

// WithClock replaces the aggregator clock.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now

	return a
}

// Summarize reports on the link's clicks in the last windowDays days.
func (a *Aggregator) Summarize(ctx context.Context, linkID int64, windowDays int) (*Report, error) {
	report, _, err := a.build(ctx, linkID, windowDays)

	return report, err
}

// Export returns the summary along with the raw events, oldest first.
func (a *Aggregator) Export(ctx context.Context, linkID int64, windowDays int) (*Export, error) {
	report, events, err := a.build(ctx, linkID, windowDays)
	if err != nil {
		return nil, err
	}

	return &Export{Report: *report, Events: events}, nil
}

func (a *Aggregator) build(ctx context.Context, linkID int64, windowDays int) (*Report, []ClickEvent, error) {
	since := a.now().UTC().Add(-time.Duration(windowDays) * 24 * time.Hour)

	events, err := a.store.ListByLink(ctx, linkID, since)
	if err != nil {
		return nil, nil, fmt.Errorf("list click events: %w", err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ClickedAt.Before(events[j].ClickedAt)
	})

	report := Summarize(events)
	report.LinkID = linkID
	report.PeriodDays = windowDays
	report.Since = since

	if events == nil {
		events = []ClickEvent{}
	}

	return report, events, nil
}

// Summarize aggregates events. It never fails; an empty input yields a zero report.
func Summarize(events []ClickEvent) *Report {
	report := &Report{
		ClicksByDay:      []DayCount{},
		Locations:        []LocationCount{},
		Devices:          []Count{},
		Browsers:         []Count{},
		OperatingSystems: []Count{},
	}

	total := int64(len(events))
	if total == 0 {
		return report
	}

	var (
		visitors     = make(map[string]struct{})
		days         = make(map[string]int64)
		devices      = make(map[string]int64)
		browsers     = make(map[string]int64)
		systems      = make(map[string]int64)
		mobile, bots int64
	)

	for i := range events {
		e := &events[i]

		if e.IPAddress != "" {
			visitors[e.IPAddress] = struct{}{}
		}

		days[e.ClickedAt.UTC().Format(time.DateOnly)]++
		devices[orUnknown(e.DeviceType)]++
		browsers[orUnknown(e.Browser)]++
		systems[orUnknown(e.OS)]++

		if e.IsMobile {
			mobile++
		}

		if e.IsBot {
			bots++
		}
	}

	report.TotalClicks = total
	report.UniqueVisitors = int64(len(visitors))
	report.ClicksByDay = byDate(days)
	report.Locations = locations(events)
	report.Devices = byCount(devices)
	report.Browsers = byCount(browsers)
	report.OperatingSystems = byCount(systems)
	report.MobilePercentage = percentage(mobile, total)
	report.BotPercentage = percentage(bots, total)

	return report
}

type locationKey struct {
	country string
	city    string
	hasCity bool
}

// locations groups events by (country, city). Events without a country are
// left out unless no event has one, in which case all of them form a single
// Unknown bucket.
func locations(events []ClickEvent) []LocationCount {
	counts := make(map[locationKey]int64)

	for i := range events {
		e := &events[i]
		if e.Country == nil {
			continue
		}

		key := locationKey{country: *e.Country}
		if e.City != nil {
			key.city, key.hasCity = *e.City, true
		}

		counts[key]++
	}

	if len(counts) == 0 {
		return []LocationCount{{Country: unknown, Clicks: int64(len(events))}}
	}

	result := make([]LocationCount, 0, len(counts))

	for key, n := range counts {
		loc := LocationCount{Country: key.country, Clicks: n}
		if key.hasCity {
			city := key.city
			loc.City = &city
		}

		result = append(result, loc)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Clicks != result[j].Clicks {
			return result[i].Clicks > result[j].Clicks
		}

		if result[i].Country != result[j].Country {
			return result[i].Country < result[j].Country
		}

		return cityName(result[i].City) < cityName(result[j].City)
	})

	return result
}

func byDate(days map[string]int64) []DayCount {
	result := make([]DayCount, 0, len(days))
	for date, n := range days {
		result = append(result, DayCount{Date: date, Clicks: n})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })

	return result
}

// byCount orders categories most common first, then by name.
func byCount(counts map[string]int64) []Count {
	result := make([]Count, 0, len(counts))
	for name, n := range counts {
		result = append(result, Count{Name: name, Clicks: n})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Clicks != result[j].Clicks {
			return result[i].Clicks > result[j].Clicks
		}

		return result[i].Name < result[j].Name
	})

	return result
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}

	return float64(part) / float64(total) * 100
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return unknown
	}

	return *s
}

func cityName(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
