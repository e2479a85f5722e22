package queue

import "time"

// CategoryStatus reports counts for one category.
type CategoryStatus struct {
	Remaining int `json:"remaining"`
	Processed int `json:"processed"`
}

// Status is a read-only view of both categories.
type Status struct {
	TotalStocks  int            `json:"total_stocks"`
	History      CategoryStatus `json:"history_updates"`
	GapDetection CategoryStatus `json:"gap_detection"`
	LastRefresh  *time.Time     `json:"last_refresh"`
	NextRefresh  *time.Time     `json:"next_refresh"`
}

// Snapshot is a copy of one category's sequences.
type Snapshot struct {
	Pending     []string
	Dispatched  []string
	LastRefresh time.Time
}

// Status returns counts for both categories. LastRefresh is the most recent
// refresh of any category; NextRefresh adds the refresh interval.
func (s *Service) Status() Status {
	var st Status
	var last time.Time

	for _, c := range Categories {
		cs := s.categories[c]
		cs.mu.Lock()
		counts := CategoryStatus{Remaining: len(cs.pending), Processed: len(cs.dispatched)}
		refreshed, size := cs.lastRefresh, cs.size
		cs.mu.Unlock()

		switch c {
		case History:
			st.History = counts
			st.TotalStocks = size
		case GapDetection:
			st.GapDetection = counts
		}
		if refreshed.After(last) {
			last = refreshed
		}
	}

	if !last.IsZero() {
		next := last.Add(s.refreshInterval)
		st.LastRefresh = &last
		st.NextRefresh = &next
	}
	return st
}

// Snapshot copies the pending and dispatched sequences of c.
func (s *Service) Snapshot(c Category) (Snapshot, error) {
	cs, err := s.category(c)
	if err != nil {
		return Snapshot{}, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	return Snapshot{
		Pending:     append([]string{}, cs.pending...),
		Dispatched:  append([]string{}, cs.dispatched...),
		LastRefresh: cs.lastRefresh,
	}, nil
}

// ParseCategory converts a name to a Category.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories {
		if string(c) == name {
			return c, nil
		}
	}
	return "", ErrUnknownCategory
}
