package waitsampling

import "time"

// WaitRow is one observation as served by the readout API: either a live
// wait from /v1/current or a recorded sample from /v1/history. EventType
// and Event are only populated when the server has an event namer.
type WaitRow struct {
	PID       int32     `json:"pid"`
	Code      uint32    `json:"code"`
	EventType string    `json:"event_type,omitempty"`
	Event     string    `json:"event,omitempty"`
	QueryID   uint64    `json:"query_id,omitempty"`
	SampledAt time.Time `json:"sampled_at,omitempty"`
}

// ProfileRow is one aggregated entry from /v1/profile. PID and QueryID are
// zero when the corresponding granularity toggle is disabled.
type ProfileRow struct {
	PID       int32   `json:"pid,omitempty"`
	Code      uint32  `json:"code"`
	EventType string  `json:"event_type,omitempty"`
	Event     string  `json:"event,omitempty"`
	QueryID   uint64  `json:"query_id,omitempty"`
	Count     int64   `json:"count"`
	Usage     float64 `json:"usage"`
}

// Status describes a running collector, as served by /v1/status.
type Status struct {
	PID            int    `json:"pid"`
	Config         Config `json:"config"`
	HistoryCursor  uint64 `json:"history_cursor"`
	HistoryLen     int    `json:"history_len"`
	ProfileEntries int    `json:"profile_entries"`
	Workers        int    `json:"workers"`
}
