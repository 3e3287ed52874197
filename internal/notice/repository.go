package notice

import (
	"SmartNotice/internal/apperr"
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ListFilter narrows List. Zero values do not constrain.
type ListFilter struct {
	CreatedBy   string
	ReadersOnly bool
}

// Store persists notices. Finders return (nil, nil) when nothing matches.
type Store interface {
	Insert(ctx context.Context, n *Notice) error
	FindByID(ctx context.Context, id string) (*Notice, error)
	// Update writes the mutable fields of n if the stored document still
	// carries prevUpdatedAt; otherwise it reports ErrConflict. Reads and
	// ReadCount are never touched.
	Update(ctx context.Context, n *Notice, prevUpdatedAt time.Time) error
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, f ListFilter) ([]*Notice, error)
	// RecordRead registers a read by userID at t and reports whether it was
	// the user's first. ErrNotFound when the notice does not exist.
	RecordRead(ctx context.Context, id, userID string, t time.Time) (bool, error)
	FindDue(ctx context.Context, now time.Time) ([]*Notice, error)
	// MarkPublished promotes the scheduled notice FindDue returned, as long as
	// the stored document still carries prevUpdatedAt and is due at t. It
	// reports false when the notice was promoted, edited or deleted since.
	MarkPublished(ctx context.Context, id primitive.ObjectID, prevUpdatedAt, t time.Time) (bool, error)
	Stats(ctx context.Context) (Summary, error)
}

type Repository struct {
	collection *mongo.Collection
}

var _ Store = (*Repository)(nil)

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{collection: db.Collection("notices")}
}

func (r *Repository) Insert(ctx context.Context, n *Notice) error {
	if n.Reads == nil {
		n.Reads = map[string]ReadEntry{}
	}
	res, err := r.collection.InsertOne(ctx, n)
	if err != nil {
		return apperr.Store(err, "insert notice")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		n.ID = oid
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Notice, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var n Notice
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store(err, "find notice")
	}
	return &n, nil
}

func mutableFields(n *Notice) (set, unset bson.M) {
	set = bson.M{
		"title":            n.Title,
		"subject":          n.Subject,
		"content":          n.Content,
		"notice_type":      n.NoticeType,
		"specialization":   n.Specialization,
		"from":             n.From,
		"departments":      n.Departments,
		"program_course":   n.Courses,
		"year":             n.Years,
		"section":          n.Sections,
		"manual_emails":    n.ManualEmails,
		"recipient_emails": n.RecipientEmails,
		"recipient_phones": n.RecipientPhones,
		"priority":         n.Priority,
		"status":           n.Status,
		"send_options":     n.SendOptions,
		"schedule_date":    n.ScheduleDate,
		"schedule_time":    n.ScheduleTime,
		"date":             n.Date,
		"time":             n.Time,
		"attachments":      n.Attachments,
		"updated_at":       n.UpdatedAt,
	}
	unset = bson.M{}
	if n.ScheduledAt != nil {
		set["scheduled_at"] = *n.ScheduledAt
	} else {
		unset["scheduled_at"] = ""
	}
	if n.PublishedAt != nil {
		set["published_at"] = *n.PublishedAt
	} else {
		unset["published_at"] = ""
	}
	return set, unset
}

func (r *Repository) Update(ctx context.Context, n *Notice, prevUpdatedAt time.Time) error {
	set, unset := mutableFields(n)
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": n.ID, "updated_at": prevUpdatedAt}, update)
	if err != nil {
		return apperr.Store(err, "update notice")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(apperr.ErrConflict, "notice changed concurrently")
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, apperr.Store(err, "delete notice")
	}
	return res.DeletedCount == 1, nil
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]*Notice, error) {
	query := bson.M{}
	if f.CreatedBy != "" {
		query["created_by"] = f.CreatedBy
	}
	if f.ReadersOnly {
		query["status"] = StatusPublished
		query["send_options.web"] = true
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"reads": 0})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, apperr.Store(err, "list notices")
	}
	var out []*Notice
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperr.Store(err, "decode notices")
	}
	return out, nil
}

// RecordRead runs two conditional single-document updates. The first only
// matches when the user has no entry yet, so concurrent first reads by the
// same user cannot both increment read_count.
func (r *Repository) RecordRead(ctx context.Context, id, userID string, t time.Time) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, errors.Wrap(apperr.ErrNotFound, "notice")
	}
	if !primitive.IsValidObjectID(userID) {
		return false, apperr.Validation("user", "invalid user id")
	}
	key := "reads." + userID

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, key: bson.M{"$exists": false}},
		bson.M{
			"$set": bson.M{key: ReadEntry{FirstReadAt: t, LastReadAt: t, Count: 1}},
			"$inc": bson.M{"read_count": 1},
		})
	if err != nil {
		return false, apperr.Store(err, "record first read")
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}

	res, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, key: bson.M{"$exists": true}},
		bson.M{
			"$set": bson.M{key + ".last_read_at": t},
			"$inc": bson.M{key + ".count": 1},
		})
	if err != nil {
		return false, apperr.Store(err, "record repeat read")
	}
	if res.MatchedCount == 0 {
		return false, errors.Wrap(apperr.ErrNotFound, "notice")
	}
	return false, nil
}

func (r *Repository) FindDue(ctx context.Context, now time.Time) ([]*Notice, error) {
	query := bson.M{"status": StatusScheduled, "scheduled_at": bson.M{"$lte": now}}
	cursor, err := r.collection.Find(ctx, query, options.Find().SetProjection(bson.M{"reads": 0}))
	if err != nil {
		return nil, apperr.Store(err, "find due notices")
	}
	var out []*Notice
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperr.Store(err, "decode due notices")
	}
	return out, nil
}

func (r *Repository) MarkPublished(ctx context.Context, id primitive.ObjectID, prevUpdatedAt, t time.Time) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":          id,
			"status":       StatusScheduled,
			"updated_at":   prevUpdatedAt,
			"scheduled_at": bson.M{"$lte": t},
		},
		bson.M{
			"$set":   bson.M{"status": StatusPublished, "published_at": t, "updated_at": t},
			"$unset": bson.M{"scheduled_at": ""},
		})
	if err != nil {
		return false, apperr.Store(err, "publish notice")
	}
	return res.ModifiedCount == 1, nil
}

type statusBucket struct {
	Status Status `bson:"_id"`
	Count  int64  `bson:"count"`
	Reads  int64  `bson:"reads"`
}

func (r *Repository) Stats(ctx context.Context) (Summary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"reads": bson.M{"$sum": "$read_count"},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return Summary{}, apperr.Store(err, "aggregate notices")
	}
	var buckets []statusBucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return Summary{}, apperr.Store(err, "decode notice stats")
	}
	return summarize(buckets), nil
}

func summarize(buckets []statusBucket) Summary {
	s := Summary{ByStatus: map[Status]int64{
		StatusDraft:     0,
		StatusScheduled: 0,
		StatusPublished: 0,
	}}
	for _, b := range buckets {
		s.TotalNotices += b.Count
		s.UniqueReads += b.Reads
		s.ByStatus[b.Status] += b.Count
	}
	return s
}
