package resource

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bare major", input: "16", want: "application/vnd.hedtech.integration.v16+json"},
		{name: "prefixed semver", input: "v16.0.0", want: "application/vnd.hedtech.integration.v16.0.0+json"},
		{name: "upper prefix", input: "V12.3.0", want: "application/vnd.hedtech.integration.v12.3.0+json"},
		{name: "full media type", input: "application/vnd.hedtech.integration.v8+json", want: "application/vnd.hedtech.integration.v8+json"},
		{name: "default", input: DefaultVersion, want: DefaultVersion},
		{name: "whitespace", input: "  v8 ", want: "application/vnd.hedtech.integration.v8+json"},
		{name: "blank", input: "   ", want: ""},
		{name: "lone prefix", input: "v", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeVersion(tt.input); got != tt.want {
				t.Errorf("NormalizeVersion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSameVersion(t *testing.T) {
	if !SameVersion("v12.3.0", "application/vnd.hedtech.integration.v12.3.0+json") {
		t.Error("abbreviated and full forms should match")
	}
	if SameVersion("v8", "v12.3.0") {
		t.Error("different versions should not match")
	}
}

func TestNotificationID_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		data string
		want NotificationID
	}{
		{name: "number", data: `12345`, want: "12345"},
		{name: "string", data: `"abc-1"`, want: "abc-1"},
		{name: "null", data: `null`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id NotificationID
			if err := json.Unmarshal([]byte(tt.data), &id); err != nil {
				t.Fatalf("Unmarshal error = %v", err)
			}
			if id != tt.want {
				t.Errorf("id = %q, want %q", id, tt.want)
			}
		})
	}
}

func TestChangeNotification_Decode(t *testing.T) {
	raw := `{
		"id": 42,
		"published": "2019-04-11T19:42:26.341+00:00",
		"operation": "replaced",
		"resource": {"name": "persons", "id": "p-1", "version": "application/vnd.hedtech.integration.v8+json"},
		"contentType": "resource-representation",
		"content": {"id": "p-1"},
		"publisher": {"id": "pub-1", "applicationName": "Banner"}
	}`

	var n ChangeNotification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	if n.ID != "42" {
		t.Errorf("ID = %q, want 42", n.ID)
	}
	if n.Operation != OperationReplaced {
		t.Errorf("Operation = %q, want replaced", n.Operation)
	}
	if n.Resource.Name != "persons" || n.Resource.ID != "p-1" {
		t.Errorf("Resource = %+v", n.Resource)
	}
	want := time.Date(2019, 4, 11, 19, 42, 26, 341000000, time.UTC)
	if !n.Published.Equal(want) {
		t.Errorf("Published = %v, want %v", n.Published, want)
	}
}

func TestWithRepresentation_DoesNotMutate(t *testing.T) {
	orig := ChangeNotification{
		ID:          "1",
		Operation:   OperationUpdated,
		Resource:    Descriptor{ID: "p-1", Name: "persons", Version: "v8"},
		ContentType: DefaultContentType,
		Content:     json.RawMessage(`{"old":true}`),
		Publisher:   json.RawMessage(`{"id":"pub"}`),
	}

	got := orig.WithRepresentation("v12", "partial", []byte(`{"new":true}`))

	if orig.Resource.Version != "v8" || string(orig.Content) != `{"old":true}` {
		t.Errorf("original mutated: %+v", orig)
	}
	if got.Resource.Version != "v12" || got.ContentType != "partial" || string(got.Content) != `{"new":true}` {
		t.Errorf("replacement = %+v", got)
	}
	if got.ID != orig.ID || got.Operation != orig.Operation || string(got.Publisher) != string(orig.Publisher) {
		t.Errorf("identity not preserved: %+v", got)
	}
	if !OperationDeleted.IsDeleted() || OperationUpdated.IsDeleted() {
		t.Error("IsDeleted mismatch")
	}
}
