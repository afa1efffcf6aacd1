package domain

import "testing"

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name    string
		current string
		stage   string
		want    string
	}{
		{"active stays active below qualified", StatusActive, StageEngaged, StatusActive},
		{"active promotes at qualified", StatusActive, StageQualified, StatusQualified},
		{"active promotes past qualified", StatusActive, StageAdvanced, StatusQualified},
		{"qualified is stable", StatusQualified, StageQualified, StatusQualified},
		{"nurturing is not promoted here", StatusNurturing, StageQualified, StatusNurturing},
		{"closed-won is sticky", StatusClosedWon, StageQualified, StatusClosedWon},
		{"closed-lost is sticky", StatusClosedLost, StageAdvanced, StatusClosedLost},
	}

	for _, tc := range cases {
		if got := DeriveStatus(tc.current, tc.stage); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestIsTerminalStatus(t *testing.T) {
	if !IsTerminalStatus(StatusClosedWon) || !IsTerminalStatus(StatusClosedLost) {
		t.Fatal("expected closed statuses to be terminal")
	}
	if IsTerminalStatus(StatusActive) || IsTerminalStatus(StatusNurturing) || IsTerminalStatus(StatusQualified) {
		t.Fatal("expected non-closed statuses to be non-terminal")
	}
}
