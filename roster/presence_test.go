package roster

import "testing"

func TestParsePresence(t *testing.T) {
	testCases := []struct {
		status string
		want   Presence
		ok     bool
	}{
		{"Online", PresenceOnline, true},
		{"Offline", PresenceOffline, true},
		{"Busy", PresenceBusy, true},
		{"Away", PresenceUnknown, false},
		{"online", PresenceUnknown, false},
		{"", PresenceUnknown, false},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			got, ok := ParsePresence(tc.status)
			if got != tc.want || ok != tc.ok {
				t.Errorf("ParsePresence(%q) = %v, %v; want %v, %v", tc.status, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestPresenceStringAndColor(t *testing.T) {
	testCases := []struct {
		p     Presence
		name  string
		color string
	}{
		{PresenceOnline, "Online", "green"},
		{PresenceOffline, "Offline", "red"},
		{PresenceBusy, "Busy", "yellow"},
		{PresenceUnknown, "Unknown", "gray"},
		{Presence(42), "Unknown", "gray"},
	}

	for _, tc := range testCases {
		if got := tc.p.String(); got != tc.name {
			t.Errorf("Presence(%d).String() = %q, want %q", tc.p, got, tc.name)
		}
		if got := tc.p.Color(); got != tc.color {
			t.Errorf("Presence(%d).Color() = %q, want %q", tc.p, got, tc.color)
		}
	}
}
