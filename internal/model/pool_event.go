package model

import "encoding/json"

// PoolEvent is the outcome of one replayed operation with the committed pool state.
type PoolEvent struct {
	Seq         uint64      `json:"seq"`
	Pool        string      `json:"pool"`
	Op          string      `json:"op"`
	Caller      string      `json:"caller"`
	Timestamp   uint64      `json:"timestamp"`
	Decoded     interface{} `json:"decoded,omitempty"`
	ReserveA    string      `json:"reserve_a"`
	ReserveB    string      `json:"reserve_b"`
	TotalShares string      `json:"total_shares"`
	Error       string      `json:"error,omitempty"`
}

// PoolEventRecord is the JSON form read back for aggregation.
type PoolEventRecord struct {
	Seq         uint64          `json:"seq"`
	Pool        string          `json:"pool"`
	Op          string          `json:"op"`
	Caller      string          `json:"caller"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded,omitempty"`
	ReserveA    string          `json:"reserve_a"`
	ReserveB    string          `json:"reserve_b"`
	TotalShares string          `json:"total_shares"`
	Error       string          `json:"error,omitempty"`
}

// Record converts an event into its aggregation form.
func (e PoolEvent) Record() (PoolEventRecord, error) {
	var decoded json.RawMessage
	if e.Decoded != nil {
		raw, err := json.Marshal(e.Decoded)
		if err != nil {
			return PoolEventRecord{}, err
		}
		decoded = raw
	}
	return PoolEventRecord{
		Seq:         e.Seq,
		Pool:        e.Pool,
		Op:          e.Op,
		Caller:      e.Caller,
		Timestamp:   e.Timestamp,
		Decoded:     decoded,
		ReserveA:    e.ReserveA,
		ReserveB:    e.ReserveB,
		TotalShares: e.TotalShares,
		Error:       e.Error,
	}, nil
}

// Failed reports whether the operation was rejected.
func (r PoolEventRecord) Failed() bool {
	return r.Error != ""
}
