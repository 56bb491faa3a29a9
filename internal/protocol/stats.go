package protocol

// TrafficCounters aggregates a relay's wire-level diagnostics: raw packet
// flow plus the summed per-peer sequence counters. Snapshots of this struct
// travel in events and API responses.
type TrafficCounters struct {
	Rx       uint64      `json:"rx"`
	Tx       uint64      `json:"tx"`
	DupTx    uint64      `json:"dup_tx"`
	Register uint64      `json:"register"`
	Drop     uint64      `json:"drop"`
	Unknown  uint64      `json:"unknown"`
	Seq      SeqCounters `json:"seq"`
}
