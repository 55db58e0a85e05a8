// Package replication is the remote replication transport (spec §4.F
// "subscribe-to-updates(start_scan_id)"): it ships an engine's
// snapshot.Envelope stream to a remote peer over a websocket connection, so
// the peer can reconstruct an equivalent snapshot by replaying envelopes
// onto its own copy.
//
// Grounded on rybkr-gitvista/internal/server/session.go's client
// read/write pumps, ping/keepalive, and per-connection write mutex,
// generalized from "broadcast one UpdateMessage type" to "ship the
// envelope sequence a subscriber asked to start from".
package replication

import (
	"encoding/json"
	"time"

	"github.com/wtengine/wtengine/internal/gitoverlay"
	"github.com/wtengine/wtengine/internal/gitstatus"
	"github.com/wtengine/wtengine/internal/snapshot"
	"github.com/wtengine/wtengine/internal/wtree"
)

// wireEntry is the JSON shape of a replicated wtree.Entry.
type wireEntry struct {
	Path       wtree.Path     `json:"path"`
	ID         wtree.ID       `json:"id"`
	Kind       int            `json:"kind"`
	Inode      uint64         `json:"inode"`
	MtimeUnix  int64          `json:"mtime_unix"`
	Size       int64          `json:"size"`
	Exec       bool           `json:"exec"`
	IsIgnored  bool           `json:"is_ignored"`
	IsExternal bool           `json:"is_external"`
	Status     int            `json:"status"`
}

// wireEnvelope is the JSON shape of one snapshot.Envelope sent over the
// wire (spec §3 "UpdateEnvelope").
type wireEnvelope struct {
	ScanID         uint64             `json:"scan_id"`
	AddedOrUpdated []wireEntry        `json:"added_or_updated"`
	RemovedPaths   []wtree.Path       `json:"removed_paths"`
	RepoDeltas     []gitoverlay.Delta `json:"repo_deltas"`
}

func toWireEntry(e *wtree.Entry) wireEntry {
	return wireEntry{
		Path:       e.Path,
		ID:         e.ID,
		Kind:       int(e.Kind),
		Inode:      e.Inode,
		MtimeUnix:  e.Mtime.Unix(),
		Size:       e.Size,
		Exec:       e.Exec,
		IsIgnored:  e.IsIgnored,
		IsExternal: e.IsExternal,
		Status:     int(e.Status),
	}
}

func fromWireEntry(w wireEntry) *wtree.Entry {
	return &wtree.Entry{
		Path:       w.Path,
		ID:         w.ID,
		Kind:       wtree.Kind(w.Kind),
		Inode:      w.Inode,
		Mtime:      time.Unix(w.MtimeUnix, 0),
		Size:       w.Size,
		Exec:       w.Exec,
		IsIgnored:  w.IsIgnored,
		IsExternal: w.IsExternal,
		Status:     gitstatus.Status(w.Status),
	}
}

func encodeEnvelope(env snapshot.Envelope) ([]byte, error) {
	w := wireEnvelope{ScanID: env.ScanID, RemovedPaths: env.RemovedPaths, RepoDeltas: env.RepoDeltas}
	w.AddedOrUpdated = make([]wireEntry, len(env.AddedOrUpdated))
	for i, e := range env.AddedOrUpdated {
		w.AddedOrUpdated[i] = toWireEntry(e)
	}
	return json.Marshal(w)
}

func decodeEnvelope(data []byte) (snapshot.Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return snapshot.Envelope{}, err
	}
	env := snapshot.Envelope{ScanID: w.ScanID, RemovedPaths: w.RemovedPaths, RepoDeltas: w.RepoDeltas}
	env.AddedOrUpdated = make([]*wtree.Entry, len(w.AddedOrUpdated))
	for i, e := range w.AddedOrUpdated {
		env.AddedOrUpdated[i] = fromWireEntry(e)
	}
	return env, nil
}
