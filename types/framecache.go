package types

// EncodedFrame is one cached, already-encoded CAN frame (§3).
//
// Invariant: a cached entry is returned only when ContentHash of the
// current BMS snapshot equals the stored hash.
type EncodedFrame struct {
	CANID       uint32
	DLC         uint8
	Payload     [8]byte
	ContentHash uint64
	ProducedTSMs int64
	Valid       bool
}
