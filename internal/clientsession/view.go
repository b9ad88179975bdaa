package clientsession

import (
	"sort"
	"sync"

	"collabchat/internal/domain/message"

	"github.com/google/uuid"
)

// Entry is one row of the rendered chat log. Pending entries are
// optimistic local sends not yet confirmed by the server; Failed marks
// a send the user should be offered a retry for.
type Entry struct {
	message.Record
	Pending bool
	Failed  bool
}

// View merges the three message sources for one conversation (REST
// history, optimistic local sends, gateway pushes) into a single
// ordered, deduplicated sequence. The merge is keyed by server message
// id and is commutative: arrival order of the sources never changes the
// result. An optimistic entry is reconciled (replaced, never
// duplicated) by its client_msg_id when either the REST response or the
// gateway echo lands, whichever comes first.
type View struct {
	mu sync.Mutex

	confirmed map[uuid.UUID]message.Record
	pending   map[string]Entry
	order     []string // client msg ids, submission order
}

func NewView() *View {
	return &View{
		confirmed: make(map[uuid.UUID]message.Record),
		pending:   make(map[string]Entry),
	}
}

// AddPending inserts an optimistic local send keyed by its client
// message id.
func (v *View) AddPending(record message.Record) {
	if record.ClientMsgID == "" {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.pending[record.ClientMsgID]; ok {
		return
	}
	v.pending[record.ClientMsgID] = Entry{Record: record, Pending: true}
	v.order = append(v.order, record.ClientMsgID)
}

// Apply merges a server-confirmed record. Applying the same record from
// both the REST response and the gateway echo is a no-op the second
// time.
func (v *View) Apply(record message.Record) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if record.ClientMsgID != "" {
		if _, ok := v.pending[record.ClientMsgID]; ok {
			delete(v.pending, record.ClientMsgID)
			v.order = removeString(v.order, record.ClientMsgID)
		}
	}
	v.confirmed[record.ID] = record
}

// MarkFailed flags an optimistic send whose server call failed, so the
// UI can surface a retry affordance instead of silently dropping it.
func (v *View) MarkFailed(clientMsgID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if entry, ok := v.pending[clientMsgID]; ok {
		entry.Failed = true
		v.pending[clientMsgID] = entry
	}
}

// PendingEntry returns the optimistic entry for a client msg id, if it
// is still unconfirmed.
func (v *View) PendingEntry(clientMsgID string) (Entry, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	entry, ok := v.pending[clientMsgID]
	return entry, ok
}

// Snapshot returns confirmed messages in creation order followed by
// unconfirmed optimistic sends in submission order. No two entries
// share a message id.
func (v *View) Snapshot() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries := make([]Entry, 0, len(v.confirmed)+len(v.pending))
	for _, record := range v.confirmed {
		entries = append(entries, Entry{Record: record})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Seq != entries[j].Seq {
			return entries[i].Seq < entries[j].Seq
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	for _, clientMsgID := range v.order {
		entries = append(entries, v.pending[clientMsgID])
	}
	return entries
}

func removeString(values []string, target string) []string {
	for i, value := range values {
		if value == target {
			return append(values[:i], values[i+1:]...)
		}
	}
	return values
}
