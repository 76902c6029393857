// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// ChangeOp is the kind of change a store notification carries.
type ChangeOp int

const (
	// ChangePut means the document was created or replaced.
	ChangePut ChangeOp = iota
	// ChangeDelete means the document was removed.
	ChangeDelete
)

func (op ChangeOp) String() string {
	switch op {
	case ChangePut:
		return "put"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// DocumentChange is a single document delta observed on a collection.
type DocumentChange struct {
	Op         ChangeOp
	DocumentID string
	// Raw is the decoded JSON object for puts. It is nil for deletes, and also
	// nil when the stored value is not a JSON object.
	Raw      map[string]any
	Revision uint64
}

// ChangeBatch groups the changes delivered by one store notification.
type ChangeBatch struct {
	Collection SourceCollection
	// Initial marks the full snapshot delivered when a watch starts.
	Initial bool
	Changes []DocumentChange
}

// RawDocument is a stored document that has not been decoded yet.
type RawDocument struct {
	ID       string
	Fields   map[string]any
	Revision uint64
}
