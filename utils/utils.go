package utils

// Timestamp keeps a monotonically increasing stream clock across producer
// timestamp resets (an embedded sender restarting its encoder clock).
type Timestamp struct {
	baseTimestamp uint32
	lastTimestamp uint32
}

// Rec folds the next producer timestamp into the stream clock and returns
// the absolute timestamp to put on the wire.
func (t *Timestamp) Rec(timestamp uint32) uint32 {
	if t.lastTimestamp > timestamp+100 {
		t.baseTimestamp += t.lastTimestamp
		t.lastTimestamp = timestamp
	}
	if t.lastTimestamp < timestamp {
		t.lastTimestamp = timestamp
	}
	return t.baseTimestamp + timestamp
}
