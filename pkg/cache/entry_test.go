package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{name: "expired entry", expires: time.Now().Add(-1 * time.Hour), want: true},
		{name: "valid entry", expires: time.Now().Add(1 * time.Hour), want: false},
		{name: "just expired", expires: time.Now().Add(-1 * time.Second), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Expires: tt.expires}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	entry := &CacheEntry{Expires: time.Now().Add(1 * time.Hour)}
	if got := entry.TTL(); got < 59*time.Minute || got > 61*time.Minute {
		t.Errorf("TTL() = %v, want about 1h", got)
	}

	expired := &CacheEntry{Expires: time.Now().Add(-1 * time.Hour)}
	if got := expired.TTL(); got != 0 {
		t.Errorf("TTL() = %v, want 0", got)
	}
}

func TestCacheEntry_Validatable(t *testing.T) {
	if (&CacheEntry{}).Validatable() {
		t.Error("entry without validators should not be validatable")
	}
	if !(&CacheEntry{ETag: `"x"`}).Validatable() {
		t.Error("entry with ETag should be validatable")
	}
	if !(&CacheEntry{LastModified: time.Now()}).Validatable() {
		t.Error("entry with Last-Modified should be validatable")
	}
}
