package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/internal/model"
)

func setupTestCalendarService() (CalendarService, *testRepos) {
	repos := newTestRepos()
	events := NewEventService(repos.repo, nil, zap.NewNop())
	return NewCalendarService(repos.repo, events, time.UTC, zap.NewNop()), repos
}

func TestCalendarService_StaffFeed(t *testing.T) {
	svc, repos := setupTestCalendarService()
	seedStaffedEvent(repos, "evt-feed", "2026-03-14", "18:00", "23:00")
	seedStaffedEvent(repos, "evt-gone", "2026-03-21", "18:00", "23:00")
	repos.events.mu.Lock()
	repos.events.events["evt-gone"].Status = model.EventStatusCancelled
	repos.events.mu.Unlock()

	feed, err := svc.StaffFeed(context.Background(), staff("amy"))
	if err != nil {
		t.Fatalf("StaffFeed: %v", err)
	}
	out := string(feed)
	for _, want := range []string{"BEGIN:VCALENDAR", "UID:evt-feed@nexa", "SUMMARY:Gala Dinner (Server)", "20260314T180000Z", "20260314T230000Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("feed missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "evt-gone@nexa") {
		t.Error("cancelled events must not appear in the feed")
	}

	empty, err := svc.StaffFeed(context.Background(), staff("stranger"))
	if err != nil || strings.Contains(string(empty), "BEGIN:VEVENT") {
		t.Errorf("expected an empty calendar, got %q (%v)", empty, err)
	}
}

const importICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly-1\r\n" +
	"SUMMARY:Sunday Brunch\r\n" +
	"LOCATION:Harbor Hall\r\n" +
	"DTSTART:20260301T170000\r\n" +
	"DTEND:20260301T230000\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=4\r\n" +
	"EXDATE:20260315T170000\r\n" +
	"X-NEXA-ROLES:Server:3;Bartender:1\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:untitled\r\n" +
	"DTSTART:20260305T090000\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:single\r\n" +
	"SUMMARY:Board Lunch\r\n" +
	"DTSTART:20260310T120000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestCalendarService_ImportDrafts(t *testing.T) {
	svc, repos := setupTestCalendarService()

	resp, err := svc.ImportDrafts(context.Background(), "mgr-1", strings.NewReader(importICS))
	if err != nil {
		t.Fatalf("ImportDrafts: %v", err)
	}
	if resp.Skipped != 1 {
		t.Errorf("expected 1 skipped event, got %d", resp.Skipped)
	}
	if len(resp.Created) != 4 {
		t.Fatalf("expected 4 drafts, got %d", len(resp.Created))
	}

	var dates []string
	for _, c := range resp.Created[:3] {
		dates = append(dates, c.Date)
		if c.Status != model.EventStatusDraft || c.StartTime != "17:00" || c.EndTime != "23:00" || c.VenueName != "Harbor Hall" {
			t.Errorf("unexpected draft: %+v", c.Event)
		}
		if len(c.Roles) != 2 || c.Roles[0].Role != "Server" || c.Roles[0].Capacity != 3 || c.Roles[1].Capacity != 1 {
			t.Errorf("unexpected roles: %+v", c.Roles)
		}
	}
	if got := strings.Join(dates, ","); got != "2026-03-01,2026-03-08,2026-03-22" {
		t.Errorf("unexpected occurrences: %s", got)
	}

	single := resp.Created[3]
	if single.Date != "2026-03-10" || single.StartTime != "12:00" || single.EndTime != "14:00" {
		t.Errorf("unexpected single draft: %+v", single.Event)
	}
	if len(single.Roles) != 1 || single.Roles[0].Role != "Staff" || single.Roles[0].Capacity != 1 {
		t.Errorf("expected one default spot, got %+v", single.Roles)
	}

	_, total, _ := repos.events.ListByManager(context.Background(), "mgr-1", model.EventStatusDraft, 0, 100)
	if total != 4 {
		t.Errorf("expected 4 stored drafts, got %d", total)
	}
}
