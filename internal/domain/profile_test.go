package domain

import "testing"

func TestProfileMergeRevisionMonotonic(t *testing.T) {
	stored := ProfileRecord{UserID: "u1"}

	if !stored.Merge(ProfileRecord{UserID: "u1", DisplayName: "Ada", Revision: 5}) {
		t.Fatal("first merge should apply")
	}
	if stored.Revision != 5 || stored.DisplayName != "Ada" {
		t.Fatalf("unexpected record after merge: %+v", stored)
	}

	if stored.Merge(ProfileRecord{UserID: "u1", DisplayName: "Eve", Revision: 3}) {
		t.Fatal("older revision must be discarded")
	}
	if stored.Revision != 5 || stored.DisplayName != "Ada" {
		t.Fatalf("stale revision mutated the record: %+v", stored)
	}

	if stored.Merge(ProfileRecord{UserID: "u1", DisplayName: "Eve", Revision: 5}) {
		t.Fatal("equal revision must be a no-op")
	}
}

func TestProfileMergeRejectsForeignUser(t *testing.T) {
	stored := ProfileRecord{UserID: "u1", DisplayName: "Ada", Revision: 2}
	if stored.Merge(ProfileRecord{UserID: "u2", DisplayName: "Eve", Revision: 9}) {
		t.Fatal("merge must reject a record for a different user")
	}
}

func TestPresenceLevel(t *testing.T) {
	cases := []struct {
		name string
		rec  PresenceRecord
		want PresenceLevel
	}{
		{"offline", PresenceRecord{RoomKey: "K"}, PresenceOffline},
		{"online elsewhere", PresenceRecord{RoomKey: "K", Online: true, ActiveKey: "Other"}, PresenceOnline},
		{"active here", PresenceRecord{RoomKey: "K", Online: true, ActiveKey: "K"}, PresenceActive},
		{"in call", PresenceRecord{RoomKey: "K", Online: true, InVoice: true}, PresenceInCall},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.Level(); got != tc.want {
				t.Errorf("Level() = %v, want %v", got, tc.want)
			}
		})
	}
}
