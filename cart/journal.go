package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JournalEntry records a ledger adjustment whose matching cart mutation has
// not committed yet. An entry is opened right after the stock phase succeeds
// and closed when the cart phase lands; entries that stay open mark the
// crash window the consistency checker repairs from.
type JournalEntry struct {
	ID         string
	CustomerID string
	ProductID  string
	Delta      int32 // ledger delta already applied
	OpenedAt   time.Time
}

// ReservationJournal is the in-memory bookkeeping of in-flight two-phase
// operations.
type ReservationJournal struct {
	mu   sync.Mutex
	open map[string]*JournalEntry
}

func NewReservationJournal() *ReservationJournal {
	return &ReservationJournal{open: make(map[string]*JournalEntry)}
}

func (j *ReservationJournal) Open(customerID, productID string, delta int32) *JournalEntry {
	entry := &JournalEntry{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		ProductID:  productID,
		Delta:      delta,
		OpenedAt:   time.Now(),
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.open[entry.ID] = entry

	return entry
}

func (j *ReservationJournal) Close(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.open, id)
}

// OpenEntries returns a snapshot of all entries still open.
func (j *ReservationJournal) OpenEntries() []*JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries := make([]*JournalEntry, 0, len(j.open))
	for _, e := range j.open {
		cp := *e
		entries = append(entries, &cp)
	}
	return entries
}

// OpenFor returns the open entries touching one product.
func (j *ReservationJournal) OpenFor(productID string) []*JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()

	var entries []*JournalEntry
	for _, e := range j.open {
		if e.ProductID == productID {
			cp := *e
			entries = append(entries, &cp)
		}
	}
	return entries
}
