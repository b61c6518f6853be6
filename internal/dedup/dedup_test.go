package dedup_test

import (
	"testing"
	"time"

	"photoferry/internal/dedup"
	"photoferry/internal/fetch"
)

func result(index int, filename, ts, caption string) fetch.Result {
	takenAt, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return fetch.Result{Index: index, Filename: filename, Timestamp: ts, TakenAt: takenAt, Caption: caption}
}

func TestBuildKeepsEarliestInstant(t *testing.T) {
	table := dedup.Build([]fetch.Result{
		result(0, "photo.jpg", "2024-07-04T10:30:00+02:00", "later"),
		result(1, "photo.jpg", "2024-07-04T00:00:00+00:00", "earlier"),
	})

	// 10:30+02:00 is 08:30Z, so the 00:00Z entry wins.
	got, ok := table.Lookup("photo")
	if !ok {
		t.Fatal("expected survivor for photo")
	}
	if got.Index != 1 || got.Caption != "earlier" {
		t.Fatalf("unexpected survivor: %+v", got)
	}
	if table.Len() != 1 || len(table.Dropped()) != 1 {
		t.Fatalf("expected one survivor and one dropped, got %d/%d", table.Len(), len(table.Dropped()))
	}
}

func TestBuildComparesAbsoluteTime(t *testing.T) {
	table := dedup.Build([]fetch.Result{
		result(0, "photo2.jpg", "2024-07-04T05:00:00+00:00", ""),
		result(1, "photo2.jpg", "2024-07-04T03:00:00-03:00", ""),
	})
	got, _ := table.Lookup("photo2")
	if got.Index != 0 {
		t.Fatalf("expected 05:00Z to beat 06:00Z, got index %d", got.Index)
	}
}

func TestBuildTieKeepsFirstSeen(t *testing.T) {
	table := dedup.Build([]fetch.Result{
		result(0, "dup.jpg", "2024-07-04T08:30:00Z", "first"),
		result(1, "dup.jpg", "2024-07-04T10:30:00+02:00", "second"),
		result(2, "dup.jpg", "2024-07-04T08:30:00Z", "third"),
	})
	got, _ := table.Lookup("dup")
	if got.Caption != "first" {
		t.Fatalf("expected first-seen survivor on tie, got %q", got.Caption)
	}
	if len(table.Dropped()) != 2 {
		t.Fatalf("expected two dropped, got %d", len(table.Dropped()))
	}
}

func TestBuildKeysByStem(t *testing.T) {
	table := dedup.Build([]fetch.Result{
		result(0, "photo3.jpeg", "2024-07-04T09:00:00Z", ""),
		result(1, "photo3.png", "2024-07-04T08:00:00Z", ""),
	})
	if table.Len() != 1 {
		t.Fatalf("expected one survivor per stem, got %d", table.Len())
	}
	got, _ := table.Lookup("photo3")
	if got.Filename != "photo3.png" {
		t.Fatalf("unexpected survivor %q", got.Filename)
	}
}

func TestSurvivorsFollowFirstSeenOrder(t *testing.T) {
	table := dedup.Build([]fetch.Result{
		result(0, "b.jpg", "2024-07-04T09:00:00Z", "bee"),
		result(1, "a.jpg", "2024-07-04T09:00:00Z", ""),
		result(2, "b.jpg", "2024-07-04T08:00:00Z", "bee early"),
	})
	survivors := table.Survivors()
	if len(survivors) != 2 || survivors[0].Filename != "b.jpg" || survivors[1].Filename != "a.jpg" {
		t.Fatalf("unexpected survivor order: %+v", survivors)
	}
	if survivors[0].Index != 2 {
		t.Fatalf("expected earlier b to replace the first, got index %d", survivors[0].Index)
	}
	if survivors[0].Caption != "bee early" || survivors[1].Caption != "" {
		t.Fatalf("unexpected survivor captions: %q, %q", survivors[0].Caption, survivors[1].Caption)
	}
}

func TestBuildEmpty(t *testing.T) {
	table := dedup.Build(nil)
	if table.Len() != 0 || len(table.Survivors()) != 0 {
		t.Fatal("expected empty table")
	}
}
