package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/internal/model"
	"github.com/juanse07/nexa-sub001/internal/repository"
)

// ── calendar ─────────────────────────────────────────────────
//
// Export: the events an identity accepted, as an iCalendar feed.
// Import: VEVENTs from an uploaded .ics become draft events.
//   - DTSTART/DTEND give date, start_time and end_time in the configured zone
//   - a weekly RRULE (COUNT, UNTIL, INTERVAL, EXDATE) expands into one draft per occurrence
//   - X-NEXA-ROLES "Server:3;Bartender:1" gives the role lines, else one "Staff" spot
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize     = 5 * 1024 * 1024
	icsMaxOccurrences  = 52
	icsRolesProperty   = "X-NEXA-ROLES"
	icsDefaultRole     = "Staff"
	icsProductID       = "-//Nexa//Staffing//EN"
	icsUIDDomain       = "@nexa"
	icsDefaultDuration = 2 * time.Hour
)

var ErrCalendarInvalid = errors.New("calendar file could not be parsed")

// CalendarService renders and imports iCalendar data.
type CalendarService interface {
	// StaffFeed renders the identity's accepted events.
	StaffFeed(ctx context.Context, id model.Identity) ([]byte, error)
	// ImportDrafts creates draft events for managerID from an .ics stream.
	ImportDrafts(ctx context.Context, managerID string, r io.Reader) (*dto.ImportResponse, error)
}

type calendarService struct {
	repo   *repository.Repository
	events EventService
	loc    *time.Location
	logger *zap.Logger
}

// NewCalendarService creates the CalendarService. Drafts are created through events.
func NewCalendarService(repo *repository.Repository, events EventService, loc *time.Location, logger *zap.Logger) CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	return &calendarService{repo: repo, events: events, loc: loc, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Feed
// ════════════════════════════════════════════════════════════

func (s *calendarService) StaffFeed(ctx context.Context, id model.Identity) ([]byte, error) {
	events, err := s.repo.Event.ListAcceptedBy(ctx, id)
	if err != nil {
		s.logger.Error("failed to list accepted events", zap.String("user_key", id.Key()), zap.Error(err))
		return nil, err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName("Nexa shifts")

	now := time.Now().UTC()
	for i := range events {
		e := &events[i]
		if e.Status == model.EventStatusCancelled || e.Date == "" {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", e.Date, s.loc)
		if err != nil {
			continue
		}

		vevent := cal.AddEvent(e.EventID + icsUIDDomain)
		vevent.SetDtStampTime(now)
		vevent.SetStatus(ics.ObjectStatusConfirmed)

		summary := e.Title
		if rec := e.FindAccepted(id); rec != nil {
			summary = fmt.Sprintf("%s (%s)", e.Title, rec.Role)
		}
		vevent.SetSummary(summary)
		if loc := strings.TrimSpace(strings.Join(nonEmpty(e.VenueName, e.VenueAddress), ", ")); loc != "" {
			vevent.SetLocation(loc)
		}
		if e.Notes != "" {
			vevent.SetDescription(e.Notes)
		}

		start, startErr := clockOn(day, e.StartTime)
		end, endErr := model.ScheduledEnd(e.Date, e.StartTime, e.EndTime, s.loc)
		switch {
		case startErr == nil && endErr == nil:
			vevent.SetStartAt(start)
			vevent.SetEndAt(end)
		case startErr == nil:
			vevent.SetStartAt(start)
			vevent.SetEndAt(start.Add(icsDefaultDuration))
		default:
			vevent.SetAllDayStartAt(day)
			vevent.SetAllDayEndAt(day.AddDate(0, 0, 1))
		}
	}

	return []byte(cal.Serialize()), nil
}

func clockOn(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// ════════════════════════════════════════════════════════════
// Import
// ════════════════════════════════════════════════════════════

func (s *calendarService) ImportDrafts(ctx context.Context, managerID string, r io.Reader) (*dto.ImportResponse, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(r, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalendarInvalid, err)
	}

	out := &dto.ImportResponse{Created: []*dto.EventResponse{}}
	for _, vevent := range cal.Events() {
		reqs, ok := s.draftsFrom(vevent)
		if !ok {
			out.Skipped++
			continue
		}
		for _, req := range reqs {
			created, err := s.events.Create(ctx, managerID, req)
			if err != nil {
				return nil, err
			}
			out.Created = append(out.Created, created)
		}
	}

	s.logger.Info("calendar imported",
		zap.String("manager_id", managerID),
		zap.Int("created", len(out.Created)),
		zap.Int("skipped", out.Skipped),
	)
	return out, nil
}

// draftsFrom converts one VEVENT into a draft per occurrence.
func (s *calendarService) draftsFrom(evt *ics.VEvent) ([]*dto.CreateEventRequest, bool) {
	summary := evt.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(summary.Value) == "" {
		return nil, false
	}
	dtStart, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, s.loc)
	if err != nil {
		return nil, false
	}
	dtEnd, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, s.loc)
	if err != nil {
		dtEnd = dtStart.Add(icsDefaultDuration)
	}

	roles := parseRoles(evt)
	base := dto.CreateEventRequest{
		Title:          truncate(strings.TrimSpace(summary.Value), 200),
		StartTime:      dtStart.Format("15:04"),
		EndTime:        dtEnd.Format("15:04"),
		VisibilityType: model.VisibilityPrivate,
		Roles:          roles,
	}
	if p := evt.GetProperty(ics.ComponentPropertyLocation); p != nil {
		base.VenueName = truncate(strings.TrimSpace(p.Value), 200)
	}
	if p := evt.GetProperty(ics.ComponentPropertyDescription); p != nil {
		base.Notes = p.Value
	}

	var reqs []*dto.CreateEventRequest
	for _, day := range occurrences(evt, dtStart, s.loc) {
		req := base
		req.Date = day.Format("2006-01-02")
		reqs = append(reqs, &req)
	}
	return reqs, len(reqs) > 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// parseRoles reads "Role:count;Role:count" from X-NEXA-ROLES.
func parseRoles(evt *ics.VEvent) []dto.RoleInput {
	var roles []dto.RoleInput
	for _, prop := range evt.Properties {
		if !strings.EqualFold(prop.IANAToken, icsRolesProperty) {
			continue
		}
		for _, part := range strings.Split(prop.Value, ";") {
			name, count, found := strings.Cut(part, ":")
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			n := 1
			if found {
				if v, err := strconv.Atoi(strings.TrimSpace(count)); err == nil && v > 0 {
					n = v
				}
			}
			roles = append(roles, dto.RoleInput{Role: name, Count: n})
		}
	}
	if len(roles) == 0 {
		roles = []dto.RoleInput{{Role: icsDefaultRole, Count: 1}}
	}
	return roles
}

// occurrences returns the start of each occurrence; non-weekly rules yield the first only.
func occurrences(evt *ics.VEvent, dtStart time.Time, loc *time.Location) []time.Time {
	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		return []time.Time{dtStart}
	}
	rule := parseRRule(rruleProp.Value)
	if rule.freq != "WEEKLY" {
		return []time.Time{dtStart}
	}

	exDates := parseExDates(evt, loc)
	interval := rule.interval
	if interval < 1 {
		interval = 1
	}

	var out []time.Time
	current := dtStart
	for n := 0; len(out) < icsMaxOccurrences; n++ {
		if !rule.until.IsZero() && current.After(rule.until) {
			break
		}
		if rule.count > 0 && n >= rule.count {
			break
		}
		if rule.count == 0 && rule.until.IsZero() && n >= icsMaxOccurrences {
			break
		}
		if !exDates[current.Format("20060102")] {
			out = append(out, current)
		}
		current = current.AddDate(0, 0, 7*interval)
	}
	return out
}

type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// parseRRule parses e.g. FREQ=WEEKLY;COUNT=16;INTERVAL=1
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.ToUpper(k) {
		case "FREQ":
			r.freq = strings.ToUpper(v)
		case "INTERVAL":
			r.interval, _ = strconv.Atoi(v)
		case "COUNT":
			r.count, _ = strconv.Atoi(v)
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", v)
			if err != nil {
				t, _ = time.Parse("20060102", v)
			}
			r.until = t
		}
	}
	return r
}

func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, raw := range strings.Split(prop.Value, ",") {
			for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
				if t, err := time.Parse(layout, raw); err == nil {
					if strings.HasSuffix(layout, "Z") {
						t = t.In(loc)
					}
					exDates[t.Format("20060102")] = true
					break
				}
			}
		}
	}
	return exDates
}

// parseICSDateTime reads a DTSTART/DTEND style property, honouring TZID.
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", propName)
	}

	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.EqualFold(k, "TZID") && len(v) > 0 {
			tzid = v[0]
		}
	}

	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		t, err := time.Parse(layout, prop.Value)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		zone := loc
		if tzid != "" {
			if tz, err := time.LoadLocation(tzid); err == nil {
				zone = tz
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, zone).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", prop.Value)
}
