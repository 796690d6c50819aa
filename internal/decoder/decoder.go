// Package decoder implements the Event Decoder Registry: a
// versioned table keyed by (contract_address, event_selector, abi_version)
// mapping raw chain events to typed payloads. Decoding never blocks
// ingestion — a failure is recorded as an undecodable event with the raw
// payload preserved, and the cursor still advances.
package decoder

import (
	"encoding/json"
	"fmt"
	"sync"

	lrucache "github.com/ciro-network/ciro/internal/cache"
	"github.com/ciro-network/ciro/internal/chain"
	"github.com/ciro-network/ciro/internal/logging"
)

var logger = logging.NewModuleLogger(logging.Decoder)

// Decoded is the typed result of a successful decode.
type Decoded struct {
	EventKind string
	Payload   []byte // JSON-encoded typed payload
}

// DecodeFunc maps a raw event's topics/data to a typed payload. It returns
// the event kind (one of the domain.EventXxx constants) and the JSON
// encoding of the typed struct.
type DecodeFunc func(raw chain.RawEvent) (*Decoded, error)

// key identifies one registered decoder version.
type key struct {
	contract   string
	selector   string
	abiVersion int
}

// Registry holds one DecodeFunc per (contract, selector, abi_version) and
// caches recent lookups, since the same (contract, selector) pair repeats
// across nearly every block in a busy range.
type Registry struct {
	mu       sync.RWMutex
	decoders map[key]DecodeFunc
	lookups  *lrucache.Cache
}

// New builds an empty Registry with a lookup cache sized to hold
// lookupCacheSize distinct (contract, selector, abi_version) triples.
func New(lookupCacheSize int) (*Registry, error) {
	c, err := lrucache.New(lookupCacheSize)
	if err != nil {
		return nil, err
	}
	return &Registry{decoders: make(map[key]DecodeFunc), lookups: c}, nil
}

// Register installs a decoder for a given contract/selector/version. Later
// registrations for the same key replace earlier ones, which lets a process
// hot-reload decoder wiring at startup before ingestion begins.
func (r *Registry) Register(contract, selector string, abiVersion int, fn DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{contract: contract, selector: selector, abiVersion: abiVersion}
	r.decoders[k] = fn
	r.lookups.Remove(k)
}

// Decode resolves the decoder for raw's (contract, selector, abi_version)
// and applies it. abiVersion selects among schema revisions for contracts
// that have been upgraded and is matched exactly: there is no fallback to
// another registered version of the same (contract, selector) pair. Callers
// here always know their version since contracts are upgraded through
// explicit migrations, not silent proxies.
func (r *Registry) Decode(raw chain.RawEvent, abiVersion int) (*Decoded, bool) {
	k := key{contract: raw.ContractAddress, selector: raw.EventSelector, abiVersion: abiVersion}

	if cached, ok := r.lookups.Get(k); ok {
		fn := cached.(DecodeFunc)
		return r.apply(fn, raw)
	}

	r.mu.RLock()
	fn, ok := r.decoders[k]
	r.mu.RUnlock()
	if !ok {
		logger.Warn("no decoder registered", "contract", raw.ContractAddress, "selector", raw.EventSelector, "abi_version", abiVersion)
		return nil, false
	}
	r.lookups.Add(k, fn)
	return r.apply(fn, raw)
}

func (r *Registry) apply(fn DecodeFunc, raw chain.RawEvent) (*Decoded, bool) {
	decoded, err := fn(raw)
	if err != nil {
		logger.Warn("decode failed, marking undecodable", "contract", raw.ContractAddress, "tx_hash", raw.TxHash, "err", err)
		return nil, false
	}
	return decoded, true
}

// jsonPayload is a convenience for decoders that just need to marshal a
// struct into the Payload field.
func jsonPayload(kind string, v interface{}) (*Decoded, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return &Decoded{EventKind: kind, Payload: b}, nil
}
