// Package id issues ULID strings for client order ids and simulated fill
// ids. Within one process ids are strictly increasing, so ledger rows keyed
// by id stay in insertion order.
package id

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Monotonic entropy keeps ids minted in the same millisecond ordered;
// crypto/rand backing makes collisions across processes implausible.
var gen = struct {
	sync.Mutex
	entropy *ulid.MonotonicEntropy
}{entropy: ulid.Monotonic(rand.Reader, 0)}

// New mints the next ULID string.
func New() string {
	gen.Lock()
	defer gen.Unlock()
	return ulid.MustNew(ulid.Now(), gen.entropy).String()
}
