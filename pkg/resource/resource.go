// Package resource defines the catalog data model shared by the fetcher,
// the pagination engine and the notification pipeline.
package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Descriptor identifies a business record and the representation version
// it was published or fetched as.
type Descriptor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Domain  string `json:"domain,omitempty"`
}

// Operation describes what happened to a resource instance.
type Operation string

const (
	// OperationCreated marks a newly created resource.
	OperationCreated Operation = "created"

	// OperationUpdated marks a partial update.
	OperationUpdated Operation = "updated"

	// OperationReplaced marks a full replacement of the representation.
	OperationReplaced Operation = "replaced"

	// OperationDeleted marks a deleted resource. Deleted notifications have
	// no canonical representation left to fetch.
	OperationDeleted Operation = "deleted"
)

// IsDeleted reports whether the operation is a deletion.
func (o Operation) IsDeleted() bool {
	return o == OperationDeleted
}

// NotificationID is the feed-assigned identifier of a change notification.
// The feed emits it either as a JSON number or a JSON string.
type NotificationID string

// UnmarshalJSON accepts both string and numeric identifiers.
func (id *NotificationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode notification id: %w", err)
		}
		*id = NotificationID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode notification id: %w", err)
	}
	*id = NotificationID(n.String())
	return nil
}

// ChangeNotification is an event describing a change to a resource instance.
type ChangeNotification struct {
	ID          NotificationID  `json:"id"`
	Published   time.Time       `json:"published"`
	Operation   Operation       `json:"operation"`
	Resource    Descriptor      `json:"resource"`
	ContentType string          `json:"contentType,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Publisher   json.RawMessage `json:"publisher,omitempty"`
}

// WithRepresentation returns a copy of n carrying a different
// representation of the same resource. Identity, publication time,
// operation and publisher are preserved; n itself is left untouched.
func (n ChangeNotification) WithRepresentation(version, contentType string, content []byte) ChangeNotification {
	out := n
	out.Resource.Version = version
	out.ContentType = contentType
	out.Content = append(json.RawMessage(nil), content...)
	return out
}
