// Package ledger tracks consumed query instances for one construction run.
package ledger

import (
	"fmt"

	"shaper/internal/catalog"
)

// Key identifies one consumed instance: the composite template key plus the
// instance id within that template's pool.
type Key struct {
	Template   catalog.TemplateKey
	InstanceID int
}

// Ledger is the in-memory set of consumed instance keys. It belongs to
// exactly one construction run and is never shared: its state means
// "already placed in this output", not global exhaustion of the source pool.
// The engine is single-threaded, so no locking.
type Ledger struct {
	used map[Key]struct{}
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{used: make(map[Key]struct{})}
}

// Used reports whether the instance was already consumed.
func (l *Ledger) Used(k Key) bool {
	_, ok := l.used[k]
	return ok
}

// Mark records the instance as consumed. Marking a key twice is a logic
// fault in the caller, never a data condition, so it fails loudly.
func (l *Ledger) Mark(k Key) {
	if _, ok := l.used[k]; ok {
		panic(fmt.Sprintf("ledger: instance %s#%d consumed twice", k.Template, k.InstanceID))
	}
	l.used[k] = struct{}{}
}

// Len is the number of consumed instances.
func (l *Ledger) Len() int {
	return len(l.used)
}
