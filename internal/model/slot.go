package model

import "strings"

// DefaultSlotLabels is the catalog used when SLOT_CATALOG is not set: two
// half-day windows per business date.
var DefaultSlotLabels = []string{"09:00-12:00", "13:00-16:00"}

// SlotCatalog is the static, ordered set of slot labels shared by every
// date.  It is built once at startup and never mutated afterwards.
type SlotCatalog struct {
    labels []string
    index  map[string]int
}

// NewSlotCatalog builds a catalog from labels, trimming blanks and dropping
// duplicates while keeping the first occurrence's position.
func NewSlotCatalog(labels []string) SlotCatalog {
    c := SlotCatalog{index: make(map[string]int, len(labels))}
    for _, l := range labels {
        l = strings.TrimSpace(l)
        if l == "" {
            continue
        }
        if _, dup := c.index[l]; dup {
            continue
        }
        c.index[l] = len(c.labels)
        c.labels = append(c.labels, l)
    }
    return c
}

// DefaultSlotCatalog returns the catalog built from DefaultSlotLabels.
func DefaultSlotCatalog() SlotCatalog { return NewSlotCatalog(DefaultSlotLabels) }

// Contains reports whether label belongs to the catalog.
func (c SlotCatalog) Contains(label string) bool {
    _, ok := c.index[label]
    return ok
}

// Labels returns a copy of the catalog in its canonical order.
func (c SlotCatalog) Labels() []string {
    out := make([]string, len(c.labels))
    copy(out, c.labels)
    return out
}

// Len returns the number of slots per date.
func (c SlotCatalog) Len() int { return len(c.labels) }

// Position returns the catalog index of label, or -1.
func (c SlotCatalog) Position(label string) int {
    if i, ok := c.index[label]; ok {
        return i
    }
    return -1
}
