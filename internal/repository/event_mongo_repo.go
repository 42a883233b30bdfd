package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/juanse07/nexa-sub001/internal/model"
	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// EventsCollection is the MongoDB collection holding event documents.
const EventsCollection = "events"

// ── documents ──

type eventDoc struct {
	ID               string       `bson:"_id"`
	ManagerID        string       `bson:"manager_id"`
	Status           string       `bson:"status"`
	Title            string       `bson:"title"`
	ClientName       string       `bson:"client_name,omitempty"`
	VenueName        string       `bson:"venue_name,omitempty"`
	VenueAddress     string       `bson:"venue_address,omitempty"`
	Notes            string       `bson:"notes,omitempty"`
	Date             string       `bson:"date,omitempty"`
	StartTime        string       `bson:"start_time,omitempty"`
	EndTime          string       `bson:"end_time,omitempty"`
	VisibilityType   string       `bson:"visibility_type"`
	AudienceUserKeys []string     `bson:"audience_user_keys"`
	AudienceTeamIDs  []string     `bson:"audience_team_ids"`
	PublishedAt      *time.Time   `bson:"published_at,omitempty"`
	PublishedBy      *string      `bson:"published_by,omitempty"`
	Version          int          `bson:"version"`
	Roles            []roleDoc    `bson:"roles"`
	RoleStats        []roleStat   `bson:"role_stats"`
	AcceptedStaff    []staffDoc   `bson:"accepted_staff"`
	DeclinedStaff    []declineDoc `bson:"declined_staff"`
	CreatedAt        time.Time    `bson:"created_at"`
	UpdatedAt        time.Time    `bson:"updated_at"`
}

type roleDoc struct {
	Role     string `bson:"role"`
	RoleKey  string `bson:"role_key"`
	Count    int    `bson:"count"`
	CallTime string `bson:"call_time,omitempty"`
}

type roleStat struct {
	RoleKey   string `bson:"role_key"`
	Role      string `bson:"role"`
	Capacity  int    `bson:"capacity"`
	Taken     int    `bson:"taken"`
	Remaining int    `bson:"remaining"`
	IsFull    bool   `bson:"is_full"`
}

type staffDoc struct {
	UserKey     string       `bson:"user_key"`
	Provider    string       `bson:"provider"`
	Subject     string       `bson:"subject"`
	Name        string       `bson:"name,omitempty"`
	Email       string       `bson:"email,omitempty"`
	Role        string       `bson:"role"`
	RoleKey     string       `bson:"role_key"`
	Response    string       `bson:"response"`
	RespondedAt time.Time    `bson:"responded_at"`
	Attendance  []sessionDoc `bson:"attendance"`
}

type declineDoc struct {
	UserKey     string    `bson:"user_key"`
	Provider    string    `bson:"provider"`
	Subject     string    `bson:"subject"`
	Name        string    `bson:"name,omitempty"`
	Email       string    `bson:"email,omitempty"`
	RespondedAt time.Time `bson:"responded_at"`
}

type sessionDoc struct {
	ClockInAt      time.Time  `bson:"clock_in_at"`
	ClockOutAt     *time.Time `bson:"clock_out_at"`
	EstimatedHours *float64   `bson:"estimated_hours,omitempty"`
	ApprovedHours  *float64   `bson:"approved_hours,omitempty"`
	Status         string     `bson:"status"`
	ApprovedBy     *string    `bson:"approved_by,omitempty"`
	ApprovedAt     *time.Time `bson:"approved_at,omitempty"`
	AutoClockOut   bool       `bson:"auto_clock_out"`
}

func toEventDoc(e *model.Event) eventDoc {
	doc := eventDoc{
		ID:               e.EventID,
		ManagerID:        e.ManagerID,
		Status:           string(e.Status),
		Title:            e.Title,
		ClientName:       e.ClientName,
		VenueName:        e.VenueName,
		VenueAddress:     e.VenueAddress,
		Notes:            e.Notes,
		Date:             e.Date,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		VisibilityType:   e.VisibilityType,
		AudienceUserKeys: nonNil(e.AudienceUserKeys),
		AudienceTeamIDs:  nonNil(e.AudienceTeamIDs),
		PublishedAt:      e.PublishedAt,
		PublishedBy:      e.PublishedBy,
		Version:          e.Version,
		Roles:            toRoleDocs(e.Roles),
		RoleStats:        toStatDocs(e.Roles),
		AcceptedStaff:    []staffDoc{},
		DeclinedStaff:    []declineDoc{},
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
	return doc
}

func toRoleDocs(roles []model.EventRole) []roleDoc {
	docs := make([]roleDoc, 0, len(roles))
	for _, r := range roles {
		docs = append(docs, roleDoc{Role: r.Role, RoleKey: model.RoleKey(r.Role), Count: r.Capacity, CallTime: r.CallTime})
	}
	return docs
}

func toStatDocs(roles []model.EventRole) []roleStat {
	docs := make([]roleStat, 0, len(roles))
	for _, r := range roles {
		s := model.NewRoleStat(r.Role, r.Capacity, r.Taken)
		docs = append(docs, roleStat{
			RoleKey:   model.RoleKey(r.Role),
			Role:      s.Role,
			Capacity:  s.Capacity,
			Taken:     s.Taken,
			Remaining: s.Remaining,
			IsFull:    s.IsFull,
		})
	}
	return docs
}

// observedStatDocs rebuilds the stored role_stats array as it was read.
func observedStatDocs(stats []model.RoleStat) []roleStat {
	docs := make([]roleStat, 0, len(stats))
	for _, s := range stats {
		docs = append(docs, roleStat{
			RoleKey:   model.RoleKey(s.Role),
			Role:      s.Role,
			Capacity:  s.Capacity,
			Taken:     s.Taken,
			Remaining: s.Remaining,
			IsFull:    s.IsFull,
		})
	}
	return docs
}

func (d *eventDoc) toModel() model.Event {
	e := model.Event{
		EventID:          d.ID,
		ManagerID:        d.ManagerID,
		Status:           model.EventStatus(d.Status),
		Title:            d.Title,
		ClientName:       d.ClientName,
		VenueName:        d.VenueName,
		VenueAddress:     d.VenueAddress,
		Notes:            d.Notes,
		Date:             d.Date,
		StartTime:        d.StartTime,
		EndTime:          d.EndTime,
		VisibilityType:   d.VisibilityType,
		AudienceUserKeys: model.StringArray(d.AudienceUserKeys),
		AudienceTeamIDs:  model.StringArray(d.AudienceTeamIDs),
		PublishedAt:      d.PublishedAt,
		PublishedBy:      d.PublishedBy,
		Version:          d.Version,
		Roles:            make([]model.EventRole, 0, len(d.Roles)),
		RoleStats:        make([]model.RoleStat, 0, len(d.RoleStats)),
		AcceptedStaff:    make([]model.StaffRecord, 0, len(d.AcceptedStaff)),
		DeclinedStaff:    make([]model.DeclineRecord, 0, len(d.DeclinedStaff)),
	}
	e.CreatedAt, e.UpdatedAt = d.CreatedAt, d.UpdatedAt

	taken := make(map[string]int, len(d.RoleStats))
	for _, s := range d.RoleStats {
		taken[s.RoleKey] = s.Taken
		e.RoleStats = append(e.RoleStats, model.RoleStat{
			Role: s.Role, Capacity: s.Capacity, Taken: s.Taken, Remaining: s.Remaining, IsFull: s.IsFull,
		})
	}
	for i, r := range d.Roles {
		e.Roles = append(e.Roles, model.EventRole{
			EventID:  d.ID,
			RoleKey:  r.RoleKey,
			Role:     r.Role,
			Capacity: r.Count,
			Taken:    taken[r.RoleKey],
			CallTime: r.CallTime,
			Position: i,
		})
	}
	for _, s := range d.AcceptedStaff {
		rec := model.StaffRecord{
			EventID:     d.ID,
			Provider:    s.Provider,
			Subject:     s.Subject,
			UserKey:     s.UserKey,
			Name:        s.Name,
			Email:       s.Email,
			RoleKey:     s.RoleKey,
			Role:        s.Role,
			Response:    s.Response,
			RespondedAt: s.RespondedAt,
			Attendance:  make([]model.AttendanceSession, 0, len(s.Attendance)),
		}
		for _, a := range s.Attendance {
			rec.Attendance = append(rec.Attendance, model.AttendanceSession{
				SessionID:      a.ClockInAt.UnixMilli(),
				EventID:        d.ID,
				Provider:       s.Provider,
				Subject:        s.Subject,
				ClockInAt:      a.ClockInAt,
				ClockOutAt:     a.ClockOutAt,
				EstimatedHours: a.EstimatedHours,
				ApprovedHours:  a.ApprovedHours,
				Status:         a.Status,
				ApprovedBy:     a.ApprovedBy,
				ApprovedAt:     a.ApprovedAt,
				AutoClockOut:   a.AutoClockOut,
			})
		}
		e.AcceptedStaff = append(e.AcceptedStaff, rec)
	}
	for _, dd := range d.DeclinedStaff {
		e.DeclinedStaff = append(e.DeclinedStaff, model.DeclineRecord{
			EventID: d.ID, Provider: dd.Provider, Subject: dd.Subject, UserKey: dd.UserKey,
			Name: dd.Name, Email: dd.Email, RespondedAt: dd.RespondedAt,
		})
	}
	return e
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ── pipeline helpers ──

func literal(v interface{}) bson.M {
	return bson.M{"$literal": v}
}

// sameIdentity matches an array element variable against (provider, subject).
func sameIdentity(varName string, id model.Identity) bson.M {
	return bson.M{"$and": bson.A{
		bson.M{"$eq": bson.A{varName + ".provider", literal(id.Provider)}},
		bson.M{"$eq": bson.A{varName + ".subject", literal(id.Subject)}},
	}}
}

// statDelta rewrites $$r with taken moved by delta and the derived fields recomputed.
func statDelta(delta int) bson.M {
	taken := bson.M{"$add": bson.A{"$$r.taken", delta}}
	return bson.M{"$mergeObjects": bson.A{"$$r", bson.M{
		"taken":     taken,
		"remaining": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$$r.capacity", taken}}}},
		"is_full":   bson.M{"$gte": bson.A{taken, "$$r.capacity"}},
	}}}
}

func withoutIdentity(field string, id model.Identity) bson.M {
	return bson.M{"$filter": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$" + field, bson.A{}}},
		"as":    "x",
		"cond":  bson.M{"$not": bson.A{sameIdentity("$$x", id)}},
	}}
}

func identityFilter(id model.Identity) bson.M {
	return bson.M{"provider": id.Provider, "subject": id.Subject}
}

// ── MongoDB implementation ──

type eventMongoRepo struct {
	coll *mongo.Collection
}

// NewEventMongoRepo creates the MongoDB EventRepository.
func NewEventMongoRepo(db *mongo.Database) EventRepository {
	return &eventMongoRepo{coll: db.Collection(EventsCollection)}
}

// EnsureEventIndexes creates the indexes the event queries rely on.
func EnsureEventIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(EventsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "manager_id", Value: 1}, {Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "accepted_staff.provider", Value: 1}, {Key: "accepted_staff.subject", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create event indexes: %w", err)
	}
	return nil
}

func (r *eventMongoRepo) Create(ctx context.Context, event *model.Event) error {
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.Version == 0 {
		event.Version = 1
	}
	for i := range event.Roles {
		event.Roles[i].EventID = event.EventID
		event.Roles[i].RoleKey = model.RoleKey(event.Roles[i].Role)
		event.Roles[i].Position = i
	}
	if _, err := r.coll.InsertOne(ctx, toEventDoc(event)); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	event.SyncStats()
	return nil
}

func (r *eventMongoRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var doc eventDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	e := doc.toModel()
	return &e, nil
}

func (r *eventMongoRepo) find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]model.Event, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	events := make([]model.Event, 0, len(docs))
	for i := range docs {
		events = append(events, docs[i].toModel())
	}
	return events, nil
}

var byDate = bson.D{{Key: "date", Value: 1}, {Key: "start_time", Value: 1}}

func (r *eventMongoRepo) ListByManager(ctx context.Context, managerID string, status model.EventStatus, offset, limit int) ([]model.Event, int64, error) {
	filter := bson.M{"manager_id": managerID}
	if status != "" {
		filter["status"] = string(status)
	}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	events, err := r.find(ctx, filter, options.Find().
		SetSort(byDate).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *eventMongoRepo) ListAvailable(ctx context.Context, userKey string, teamIDs []string) ([]model.Event, error) {
	filter := bson.M{
		"status": bson.M{"$in": openStatuses},
		"$or": bson.A{
			bson.M{"visibility_type": bson.M{"$in": bson.A{model.VisibilityPublic, model.VisibilityPrivatePublic}}},
			bson.M{"audience_user_keys": userKey},
			bson.M{"audience_team_ids": bson.M{"$in": nonNil(teamIDs)}},
		},
	}
	return r.find(ctx, filter, options.Find().SetSort(byDate))
}

func (r *eventMongoRepo) ListAcceptedBy(ctx context.Context, id model.Identity) ([]model.Event, error) {
	filter := bson.M{"accepted_staff": bson.M{"$elemMatch": identityFilter(id)}}
	return r.find(ctx, filter, options.Find().SetSort(byDate))
}

func (r *eventMongoRepo) ListWithOpenSessions(ctx context.Context) ([]model.Event, error) {
	filter := bson.M{
		"status":                    bson.M{"$in": openStatuses},
		"accepted_staff.attendance": bson.M{"$elemMatch": bson.M{"clock_out_at": nil}},
	}
	return r.find(ctx, filter)
}

// Update rewrites details and role lines. The stored role_stats must still
// equal what the caller read, so a concurrent acceptance fails the write.
func (r *eventMongoRepo) Update(ctx context.Context, event *model.Event) error {
	oldVersion := event.Version
	filter := bson.M{
		"_id":        event.EventID,
		"version":    oldVersion,
		"role_stats": observedStatDocs(event.RoleStats),
	}
	for i := range event.Roles {
		event.Roles[i].RoleKey = model.RoleKey(event.Roles[i].Role)
		event.Roles[i].Position = i
	}
	update := bson.M{"$set": bson.M{
		"status":             string(event.Status),
		"title":              event.Title,
		"client_name":        event.ClientName,
		"venue_name":         event.VenueName,
		"venue_address":      event.VenueAddress,
		"notes":              event.Notes,
		"date":               event.Date,
		"start_time":         event.StartTime,
		"end_time":           event.EndTime,
		"visibility_type":    event.VisibilityType,
		"audience_user_keys": nonNil(event.AudienceUserKeys),
		"audience_team_ids":  nonNil(event.AudienceTeamIDs),
		"published_at":       event.PublishedAt,
		"published_by":       event.PublishedBy,
		"roles":              toRoleDocs(event.Roles),
		"role_stats":         toStatDocs(event.Roles),
		"version":            oldVersion + 1,
		"updated_at":         time.Now().UTC(),
	}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	event.Version = oldVersion + 1
	event.SyncStats()
	return nil
}

func (r *eventMongoRepo) conditional(ctx context.Context, filter bson.M, update interface{}, opts ...options.Lister[options.UpdateOneOptions]) error {
	res, err := r.coll.UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return pkgerrors.ErrConditionFailed
	}
	return nil
}

func (r *eventMongoRepo) ClaimRole(ctx context.Context, eventID string, rec model.StaffRecord) error {
	id := rec.Identity()
	key := model.RoleKey(rec.Role)
	filter := bson.M{
		"_id":            eventID,
		"status":         bson.M{"$in": openStatuses},
		"role_stats":     bson.M{"$elemMatch": bson.M{"role_key": key, "remaining": bson.M{"$gt": 0}}},
		"accepted_staff": bson.M{"$not": bson.M{"$elemMatch": identityFilter(id)}},
	}
	staff := staffDoc{
		UserKey:     rec.UserKey,
		Provider:    rec.Provider,
		Subject:     rec.Subject,
		Name:        rec.Name,
		Email:       rec.Email,
		Role:        rec.Role,
		RoleKey:     key,
		Response:    model.ResponseAccept,
		RespondedAt: rec.RespondedAt,
		Attendance:  []sessionDoc{},
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"accepted_staff": bson.M{"$concatArrays": bson.A{
			bson.M{"$ifNull": bson.A{"$accepted_staff", bson.A{}}},
			bson.A{literal(staff)},
		}},
		"declined_staff": withoutIdentity("declined_staff", id),
		"role_stats": bson.M{"$map": bson.M{
			"input": "$role_stats",
			"as":    "r",
			"in":    bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$$r.role_key", literal(key)}}, statDelta(1), "$$r"}},
		}},
		"updated_at": rec.RespondedAt,
	}}}}
	return r.conditional(ctx, filter, pipeline)
}

func (r *eventMongoRepo) SwitchRole(ctx context.Context, eventID string, id model.Identity, fromRole, toRole string, at time.Time) error {
	fromKey, toKey := model.RoleKey(fromRole), model.RoleKey(toRole)
	filter := bson.M{
		"_id":    eventID,
		"status": bson.M{"$in": openStatuses},
		"accepted_staff": bson.M{"$elemMatch": bson.M{
			"provider": id.Provider, "subject": id.Subject, "role_key": fromKey,
		}},
		"role_stats": bson.M{"$elemMatch": bson.M{"role_key": toKey, "remaining": bson.M{"$gt": 0}}},
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"accepted_staff": bson.M{"$map": bson.M{
			"input": "$accepted_staff",
			"as":    "a",
			"in": bson.M{"$cond": bson.A{
				sameIdentity("$$a", id),
				bson.M{"$mergeObjects": bson.A{"$$a", bson.M{
					"role":         literal(toRole),
					"role_key":     literal(toKey),
					"responded_at": at,
				}}},
				"$$a",
			}},
		}},
		"role_stats": bson.M{"$map": bson.M{
			"input": "$role_stats",
			"as":    "r",
			"in": bson.M{"$switch": bson.M{
				"branches": bson.A{
					bson.M{"case": bson.M{"$eq": bson.A{"$$r.role_key", literal(toKey)}}, "then": statDelta(1)},
					bson.M{"case": bson.M{"$eq": bson.A{"$$r.role_key", literal(fromKey)}}, "then": statDelta(-1)},
				},
				"default": "$$r",
			}},
		}},
		"updated_at": at,
	}}}}
	return r.conditional(ctx, filter, pipeline)
}

func (r *eventMongoRepo) ReleaseRole(ctx context.Context, eventID string, decline model.DeclineRecord) error {
	id := model.Identity{Provider: decline.Provider, Subject: decline.Subject}
	filter := bson.M{
		"_id":    eventID,
		"status": bson.M{"$in": openStatuses},
		"accepted_staff": bson.M{"$elemMatch": bson.M{
			"provider": id.Provider,
			"subject":  id.Subject,
			"$or": bson.A{
				bson.M{"attendance": bson.M{"$exists": false}},
				bson.M{"attendance": nil},
				bson.M{"attendance": bson.M{"$size": 0}},
			},
		}},
	}
	held := bson.M{"$arrayElemAt": bson.A{
		bson.M{"$filter": bson.M{"input": "$accepted_staff", "as": "a", "cond": sameIdentity("$$a", id)}},
		0,
	}}
	doc := declineDoc{
		UserKey: decline.UserKey, Provider: decline.Provider, Subject: decline.Subject,
		Name: decline.Name, Email: decline.Email, RespondedAt: decline.RespondedAt,
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"accepted_staff": withoutIdentity("accepted_staff", id),
		"declined_staff": bson.M{"$concatArrays": bson.A{withoutIdentity("declined_staff", id), bson.A{literal(doc)}}},
		"role_stats": bson.M{"$let": bson.M{
			"vars": bson.M{"held": held},
			"in": bson.M{"$map": bson.M{
				"input": "$role_stats",
				"as":    "r",
				"in":    bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$$r.role_key", "$$held.role_key"}}, statDelta(-1), "$$r"}},
			}},
		}},
		"updated_at": decline.RespondedAt,
	}}}}
	return r.conditional(ctx, filter, pipeline)
}

func (r *eventMongoRepo) RecordDecline(ctx context.Context, eventID string, decline model.DeclineRecord) error {
	id := model.Identity{Provider: decline.Provider, Subject: decline.Subject}
	filter := bson.M{
		"_id":            eventID,
		"status":         bson.M{"$in": openStatuses},
		"accepted_staff": bson.M{"$not": bson.M{"$elemMatch": identityFilter(id)}},
	}
	doc := declineDoc{
		UserKey: decline.UserKey, Provider: decline.Provider, Subject: decline.Subject,
		Name: decline.Name, Email: decline.Email, RespondedAt: decline.RespondedAt,
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"declined_staff": bson.M{"$concatArrays": bson.A{withoutIdentity("declined_staff", id), bson.A{literal(doc)}}},
		"updated_at":     decline.RespondedAt,
	}}}}
	return r.conditional(ctx, filter, pipeline)
}

func (r *eventMongoRepo) RepairStats(ctx context.Context, eventID string) error {
	count := bson.M{"$size": bson.M{"$filter": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$accepted_staff", bson.A{}}},
		"as":    "a",
		"cond":  bson.M{"$eq": bson.A{"$$a.role_key", "$$r.role_key"}},
	}}}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"role_stats": bson.M{"$map": bson.M{
			"input": "$role_stats",
			"as":    "r",
			"in": bson.M{"$mergeObjects": bson.A{"$$r", bson.M{
				"taken":     count,
				"remaining": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$$r.capacity", count}}}},
				"is_full":   bson.M{"$gte": bson.A{count, "$$r.capacity"}},
			}}},
		}},
	}}}}
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": eventID}, pipeline)
	return err
}

func (r *eventMongoRepo) AppendSession(ctx context.Context, eventID string, id model.Identity, at time.Time) error {
	filter := bson.M{
		"_id":    eventID,
		"status": bson.M{"$in": openStatuses},
		"accepted_staff": bson.M{"$elemMatch": bson.M{
			"provider":   id.Provider,
			"subject":    id.Subject,
			"attendance": bson.M{"$not": bson.M{"$elemMatch": bson.M{"clock_out_at": nil}}},
		}},
	}
	update := bson.M{
		"$push": bson.M{"accepted_staff.$[s].attendance": sessionDoc{
			ClockInAt: at,
			Status:    model.AttendancePending,
		}},
		"$set": bson.M{"updated_at": at},
	}
	opts := options.UpdateOne().SetArrayFilters([]any{
		bson.M{"s.provider": id.Provider, "s.subject": id.Subject},
	})
	return r.conditional(ctx, filter, update, opts)
}

func (r *eventMongoRepo) CloseSession(ctx context.Context, eventID string, id model.Identity, session model.AttendanceSession) error {
	filter := bson.M{
		"_id": eventID,
		"accepted_staff": bson.M{"$elemMatch": bson.M{
			"provider": id.Provider,
			"subject":  id.Subject,
			"attendance": bson.M{"$elemMatch": bson.M{
				"clock_in_at":  session.ClockInAt,
				"clock_out_at": nil,
			}},
		}},
	}
	update := bson.M{"$set": bson.M{
		"accepted_staff.$[s].attendance.$[a].clock_out_at":    session.ClockOutAt,
		"accepted_staff.$[s].attendance.$[a].estimated_hours": session.EstimatedHours,
		"accepted_staff.$[s].attendance.$[a].auto_clock_out":  session.AutoClockOut,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.UpdateOne().SetArrayFilters([]any{
		bson.M{"s.provider": id.Provider, "s.subject": id.Subject},
		bson.M{"a.clock_in_at": session.ClockInAt, "a.clock_out_at": nil},
	})
	return r.conditional(ctx, filter, update, opts)
}

func (r *eventMongoRepo) ApproveSession(ctx context.Context, eventID string, id model.Identity, session model.AttendanceSession) error {
	filter := bson.M{
		"_id": eventID,
		"accepted_staff": bson.M{"$elemMatch": bson.M{
			"provider": id.Provider,
			"subject":  id.Subject,
			"attendance": bson.M{"$elemMatch": bson.M{
				"clock_in_at":  session.ClockInAt,
				"clock_out_at": bson.M{"$ne": nil},
				"status":       model.AttendancePending,
			}},
		}},
	}
	update := bson.M{"$set": bson.M{
		"accepted_staff.$[s].attendance.$[a].status":         model.AttendanceApproved,
		"accepted_staff.$[s].attendance.$[a].approved_hours": session.ApprovedHours,
		"accepted_staff.$[s].attendance.$[a].approved_by":    session.ApprovedBy,
		"accepted_staff.$[s].attendance.$[a].approved_at":    session.ApprovedAt,
	}}
	opts := options.UpdateOne().SetArrayFilters([]any{
		bson.M{"s.provider": id.Provider, "s.subject": id.Subject},
		bson.M{"a.clock_in_at": session.ClockInAt, "a.status": model.AttendancePending},
	})
	return r.conditional(ctx, filter, update, opts)
}
