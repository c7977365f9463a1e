// Package readableid generates the human-readable reference codes printed on
// bordereaux. The code is what external parties quote and what the reindex
// signal carries, so it must be unique and roughly sortable by creation date.
package readableid

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const prefix = "BSD"

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a reference like "BSD-20260901-4Y2Q8R3ZT". The date segment keeps
// codes legible on paper forms; the ULID tail guarantees uniqueness.
func New(now time.Time) string {
	mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(now), entropy)
	mu.Unlock()
	// Last 9 chars of the ULID are the fastest-moving entropy bits.
	s := id.String()
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), s[len(s)-9:])
}
