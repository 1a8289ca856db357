package queue

import (
	"testing"
)

func TestFanoutEvent_RoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		event FanoutEvent
	}{
		{"post published", NewPostPublishedEvent("p1", "alice")},
		{"user followed", NewUserFollowedEvent("bob", "alice")},
		{"user unfollowed", NewUserUnfollowedEvent("bob", "alice")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values, err := tc.event.ToMap()
			if err != nil {
				t.Fatalf("ToMap: %v", err)
			}
			if values["type"] != tc.event.Type {
				t.Errorf("type field = %v, want %q", values["type"], tc.event.Type)
			}

			parsed, err := ParseFanoutEvent(values)
			if err != nil {
				t.Fatalf("ParseFanoutEvent: %v", err)
			}
			if parsed != tc.event {
				t.Errorf("parsed = %+v, want %+v", parsed, tc.event)
			}
		})
	}
}

func TestParseFanoutEvent_Malformed(t *testing.T) {
	if _, err := ParseFanoutEvent(map[string]interface{}{"type": "post_published"}); err == nil {
		t.Error("expected an error when the data field is missing")
	}
	if _, err := ParseFanoutEvent(map[string]interface{}{"data": "{not json"}); err == nil {
		t.Error("expected an error for invalid JSON")
	}
}
