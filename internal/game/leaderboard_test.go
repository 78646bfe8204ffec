package game

import (
	"context"
	"testing"
	"time"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		raw      string
		expected Window
		wantErr  bool
	}{
		{raw: "", expected: WindowDay},
		{raw: "day", expected: WindowDay},
		{raw: "week", expected: WindowWeek},
		{raw: "all", expected: WindowAll},
		{raw: "month", wantErr: true},
	}

	for _, tc := range tests {
		window, err := ParseWindow(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.raw, err)
		}
		if window != tc.expected {
			t.Fatalf("expected %s for %q, got %s", tc.expected, tc.raw, window)
		}
	}
}

func TestLeaderboardTieBreaksByFirstClick(t *testing.T) {
	service, _, clock := newTestService(t, testEpochStart)
	ctx := context.Background()
	early := mustUserID(t, "zed")
	late := mustUserID(t, "amy")

	// Equal click counts; "zed" clicked first and must rank above "amy"
	// despite sorting after her by name.
	if _, err := service.RecordClick(ctx, early); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(time.Minute)
	if _, err := service.RecordClick(ctx, late); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(time.Minute)
	if _, err := service.RecordClick(ctx, late); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(time.Minute)
	if _, err := service.RecordClick(ctx, early); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	standings, err := service.Leaderboard(ctx, WindowDay, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(standings) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(standings))
	}
	if standings[0].UserID != early {
		t.Fatalf("expected the earlier first click to rank first, got %s", standings[0].UserID)
	}
	if standings[0].FirstClickAt.After(standings[1].FirstClickAt) {
		t.Fatalf("first entry should hold the earlier first click")
	}
}

func TestLeaderboardWindows(t *testing.T) {
	service, db, clock := newTestService(t, testEpochStart.AddDate(0, 0, 20))
	ctx := context.Background()
	userID := mustUserID(t, "u1")

	// Seed archived history directly into the event log: one click eight
	// epochs back (outside the trailing week) and one three epochs back.
	current := CurrentEpochID(clock.Now())
	outsideWeek, err := epochOffset(current, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	insideWeek, err := epochOffset(current, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	archived := []ClickEvent{
		{ClickID: "old-1", EpochID: outsideWeek.String(), UserID: "ancient", OccurredAtSeconds: clock.Now().AddDate(0, 0, -8).Unix(), PointsAwarded: 1},
		{ClickID: "old-2", EpochID: insideWeek.String(), UserID: userID.String(), OccurredAtSeconds: clock.Now().AddDate(0, 0, -3).Unix(), PointsAwarded: 1},
	}
	for _, event := range archived {
		if err := db.Create(&event).Error; err != nil {
			t.Fatalf("failed to seed event: %v", err)
		}
	}

	if _, err := service.RecordClick(ctx, userID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	day, err := service.Leaderboard(ctx, WindowDay, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(day) != 1 || day[0].Clicks != 1 {
		t.Fatalf("day window should see only today's click: %+v", day)
	}

	week, err := service.Leaderboard(ctx, WindowWeek, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(week) != 1 {
		t.Fatalf("week window should exclude the 8-epoch-old player: %+v", week)
	}
	if week[0].UserID != userID || week[0].Clicks != 2 {
		t.Fatalf("week window should sum the trailing epochs: %+v", week[0])
	}

	all, err := service.Leaderboard(ctx, WindowAll, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all window should include archived epochs: %+v", all)
	}
}

func TestLeaderboardHonorsLimit(t *testing.T) {
	service, _, clock := newTestService(t, testEpochStart)
	ctx := context.Background()

	for _, name := range []string{"u1", "u2", "u3"} {
		if _, err := service.RecordClick(ctx, mustUserID(t, name)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		clock.Advance(time.Second)
	}

	standings, err := service.Leaderboard(ctx, WindowDay, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(standings) != 2 {
		t.Fatalf("expected the limit to cap entries, got %d", len(standings))
	}
	if standings[0].Rank != 1 || standings[1].Rank != 2 {
		t.Fatalf("ranks must be 1-based positions: %+v", standings)
	}
}
