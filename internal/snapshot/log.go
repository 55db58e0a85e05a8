package snapshot

import "sync"

// Log is the in-memory Update Log (spec §6 "Persisted state layout: none at
// the engine level ... the update log is in-memory"): every Envelope since
// startup, kept so a late-subscribing replica can catch up from any earlier
// scan_id (spec §4.F, §8 "Replication closure").
type Log struct {
	mu        sync.RWMutex
	envelopes []Envelope
}

// NewLog returns an empty Log.
func NewLog() *Log {
	return &Log{}
}

// Append records env. The commit loop is the Log's only writer, and it
// appends in scan_id order by construction (spec §5 ordering guarantee 1).
func (l *Log) Append(env Envelope) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.envelopes = append(l.envelopes, env)
}

// Since returns every Envelope with ScanID > afterScanID, in order — the
// sequence subscribe-to-updates(start_scan_id) ships to a remote replica
// (spec §6 "Published to UI/transport").
func (l *Log) Since(afterScanID uint64) []Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Envelope, 0)
	for _, e := range l.envelopes {
		if e.ScanID > afterScanID {
			out = append(out, e)
		}
	}
	return out
}

// Latest returns the most recently appended scan_id, or 0 if the log is
// empty.
func (l *Log) Latest() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.envelopes) == 0 {
		return 0
	}
	return l.envelopes[len(l.envelopes)-1].ScanID
}
