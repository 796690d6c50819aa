package chain

// Block is the subset of a rollup block header the indexer needs.
type Block struct {
	Number    uint64
	Hash      string
	ParentHash string
	Timestamp uint64
}

// RawEvent is an undecoded chain log as returned by the RPC adapter's
// events-by-filter call. The decoder registry (internal/decoder) maps this
// to a typed payload.
type RawEvent struct {
	ContractAddress string
	EventSelector   string
	BlockNumber     uint64
	BlockHash       string
	TxHash          string
	TxIndex         uint32
	EventIndex      uint32
	Timestamp       uint64
	Topics          []string
	Data            []byte
}
