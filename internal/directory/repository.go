package directory

import (
	"SmartNotice/internal/apperr"
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Directory is the read-only student/teacher lookup used for targeting.
type Directory interface {
	MatchStudents(ctx context.Context, f StudentFilter) ([]Student, error)
	TeachersInDepartments(ctx context.Context, departments []string) ([]Teacher, error)
	StudentsByEmails(ctx context.Context, emails []string) ([]Student, error)
}

type Repository struct {
	students *mongo.Collection
	teachers *mongo.Collection
}

var _ Directory = (*Repository)(nil)

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{
		students: db.Collection("students"),
		teachers: db.Collection("teachers"),
	}
}

func studentQuery(f StudentFilter) bson.M {
	q := bson.M{}
	if len(f.Departments) > 0 {
		q["branch"] = bson.M{"$in": f.Departments}
	}
	if len(f.Courses) > 0 {
		q["course"] = bson.M{"$in": f.Courses}
	}
	if len(f.Years) > 0 {
		q["year"] = bson.M{"$in": f.Years}
	}
	if len(f.Sections) > 0 {
		q["section"] = bson.M{"$in": f.Sections}
	}
	return q
}

var contactProjection = bson.M{
	"name": 1, "branch": 1, "course": 1, "year": 1, "section": 1, "univ_roll_no": 1,
	"official_email": 1, "email": 1, "student_mobile": 1,
}

// MatchStudents returns nothing for an empty filter rather than the whole
// collection.
func (r *Repository) MatchStudents(ctx context.Context, f StudentFilter) ([]Student, error) {
	if f.IsEmpty() {
		return nil, nil
	}
	cursor, err := r.students.Find(ctx, studentQuery(f), options.Find().SetProjection(contactProjection))
	if err != nil {
		return nil, apperr.Store(err, "match students")
	}
	var out []Student
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperr.Store(err, "decode students")
	}
	return out, nil
}

func (r *Repository) TeachersInDepartments(ctx context.Context, departments []string) ([]Teacher, error) {
	if len(departments) == 0 {
		return nil, nil
	}
	cursor, err := r.teachers.Find(ctx, bson.M{"department": bson.M{"$in": departments}})
	if err != nil {
		return nil, apperr.Store(err, "match teachers")
	}
	var out []Teacher
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperr.Store(err, "decode teachers")
	}
	return out, nil
}

func (r *Repository) StudentsByEmails(ctx context.Context, emails []string) ([]Student, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	filter := bson.M{"$or": bson.A{
		bson.M{"email": bson.M{"$in": emails}},
		bson.M{"official_email": bson.M{"$in": emails}},
	}}
	cursor, err := r.students.Find(ctx, filter, options.Find().SetProjection(contactProjection))
	if err != nil {
		return nil, apperr.Store(err, "find students by email")
	}
	var out []Student
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperr.Store(err, "decode students")
	}
	return out, nil
}

// DistinctValues lists the sorted non-empty values of field among students
// matching f.
func (r *Repository) DistinctValues(ctx context.Context, field string, f StudentFilter) ([]string, error) {
	raw, err := r.students.Distinct(ctx, field, studentQuery(f))
	if err != nil {
		return nil, apperr.Store(err, "distinct "+field)
	}
	return sortedStrings(raw), nil
}

func sortedStrings(raw []interface{}) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
