package notice

import (
	"SmartNotice/internal/apperr"
	"SmartNotice/internal/auth"
	"SmartNotice/internal/config"
	"SmartNotice/internal/delivery"
	"SmartNotice/internal/directory"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memoryStore struct {
	mu      sync.Mutex
	notices map[string]*Notice
}

var _ Store = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{notices: map[string]*Notice{}}
}

func clone(n *Notice) *Notice {
	c := *n
	c.Reads = make(map[string]ReadEntry, len(n.Reads))
	for k, v := range n.Reads {
		c.Reads[k] = v
	}
	c.Attachments = append([]Attachment(nil), n.Attachments...)
	return &c
}

func (m *memoryStore) Insert(_ context.Context, n *Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	m.notices[n.ID.Hex()] = clone(n)
	return nil
}

func (m *memoryStore) FindByID(_ context.Context, id string) (*Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notices[id]
	if !ok {
		return nil, nil
	}
	return clone(n), nil
}

func (m *memoryStore) Update(_ context.Context, n *Notice, prevUpdatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.notices[n.ID.Hex()]
	if !ok || !cur.UpdatedAt.Equal(prevUpdatedAt) {
		return errors.Wrap(apperr.ErrConflict, "notice changed concurrently")
	}
	next := clone(n)
	next.Reads, next.ReadCount = cur.Reads, cur.ReadCount
	m.notices[n.ID.Hex()] = next
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notices[id]; !ok {
		return false, nil
	}
	delete(m.notices, id)
	return true, nil
}

func (m *memoryStore) List(_ context.Context, f ListFilter) ([]*Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Notice
	for _, n := range m.notices {
		if f.CreatedBy != "" && n.CreatedBy != f.CreatedBy {
			continue
		}
		if f.ReadersOnly && !n.VisibleToReaders() {
			continue
		}
		out = append(out, clone(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) RecordRead(_ context.Context, id, userID string, t time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notices[id]
	if !ok {
		return false, errors.Wrap(apperr.ErrNotFound, "notice")
	}
	e, seen := n.Reads[userID]
	if !seen {
		n.Reads[userID] = ReadEntry{FirstReadAt: t, LastReadAt: t, Count: 1}
		n.ReadCount++
		return true, nil
	}
	e.LastReadAt = t
	e.Count++
	n.Reads[userID] = e
	return false, nil
}

func (m *memoryStore) FindDue(_ context.Context, now time.Time) ([]*Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Notice
	for _, n := range m.notices {
		if n.Status == StatusScheduled && n.ScheduledAt != nil && !n.ScheduledAt.After(now) {
			out = append(out, clone(n))
		}
	}
	return out, nil
}

func (m *memoryStore) MarkPublished(_ context.Context, id primitive.ObjectID, prevUpdatedAt, t time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notices[id.Hex()]
	if !ok || n.Status != StatusScheduled || !n.UpdatedAt.Equal(prevUpdatedAt) {
		return false, nil
	}
	if n.ScheduledAt == nil || n.ScheduledAt.After(t) {
		return false, nil
	}
	n.Status, n.PublishedAt, n.ScheduledAt, n.UpdatedAt = StatusPublished, &t, nil, t
	return true, nil
}

func (m *memoryStore) Stats(_ context.Context) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[Status]*statusBucket{}
	for _, n := range m.notices {
		b, ok := counts[n.Status]
		if !ok {
			b = &statusBucket{Status: n.Status}
			counts[n.Status] = b
		}
		b.Count++
		b.Reads += int64(n.ReadCount)
	}
	var buckets []statusBucket
	for _, b := range counts {
		buckets = append(buckets, *b)
	}
	return summarize(buckets), nil
}

type fakeDirectory struct {
	students []directory.Student
	teachers []directory.Teacher
}

var _ directory.Directory = (*fakeDirectory)(nil)

func contains(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func (d *fakeDirectory) MatchStudents(_ context.Context, f directory.StudentFilter) ([]directory.Student, error) {
	if f.IsEmpty() {
		return nil, nil
	}
	var out []directory.Student
	for _, s := range d.students {
		if contains(f.Departments, s.Department) && contains(f.Courses, s.Course) && contains(f.Years, s.Year) && contains(f.Sections, s.Section) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (d *fakeDirectory) TeachersInDepartments(_ context.Context, departments []string) ([]directory.Teacher, error) {
	if len(departments) == 0 {
		return nil, nil
	}
	var out []directory.Teacher
	for _, t := range d.teachers {
		if contains(departments, t.Department) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (d *fakeDirectory) StudentsByEmails(_ context.Context, emails []string) ([]directory.Student, error) {
	var out []directory.Student
	for _, s := range d.students {
		for _, e := range emails {
			if e != "" && (e == s.Email || e == s.OfficialEmail) {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

type fakeUsers map[string]*auth.User

func (u fakeUsers) FindByIDs(_ context.Context, ids []string) (map[string]*auth.User, error) {
	out := map[string]*auth.User{}
	for _, id := range ids {
		if user, ok := u[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []delivery.Message
	refuse   bool
}

func (d *recordingDispatcher) Dispatch(msg delivery.Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refuse {
		return false
	}
	d.messages = append(d.messages, msg)
	return true
}

func (d *recordingDispatcher) sent() []delivery.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delivery.Message(nil), d.messages...)
}

var (
	admin   = auth.Principal{ID: primitive.NewObjectID().Hex(), Name: "Registrar", Email: "registrar@uni.edu", Role: auth.RoleAdmin}
	student = auth.Principal{ID: primitive.NewObjectID().Hex(), Name: "Asha", Email: "asha@uni.edu", Role: auth.RoleUser}
	other   = auth.Principal{ID: primitive.NewObjectID().Hex(), Name: "Ravi", Email: "ravi@uni.edu", Role: auth.RoleUser}
)

type fixture struct {
	service    *Service
	store      *memoryStore
	dispatcher *recordingDispatcher
	files      *AttachmentStore
	now        time.Time
}

func testDirectory() *fakeDirectory {
	return &fakeDirectory{
		students: []directory.Student{
			{Name: "Asha", Department: "CSE", Course: "BTech", Year: "2", Section: "A", OfficialEmail: "asha@uni.edu", Email: "asha@gmail.com", Mobile: "9100000001", UnivRollNo: "21CS001"},
			{Name: "Bela", Department: "CSE", Course: "BTech", Year: "2", Section: "B", Email: "bela@gmail.com", Mobile: "9100000002"},
			{Name: "Chen", Department: "CSE", Course: "MTech", Year: "1", Section: "A", OfficialEmail: "chen@uni.edu"},
			{Name: "Dev", Department: "ECE", Course: "BTech", Year: "2", Section: "A", OfficialEmail: "dev@uni.edu"},
		},
		teachers: []directory.Teacher{
			{Name: "Prof. Iyer", Department: "CSE", OfficialEmail: "iyer@uni.edu", Mobile: "9200000001"},
			{Name: "Prof. Rao", Department: "ECE", Email: "rao@gmail.com"},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	cfg := &config.Config{Location: loc, UploadDir: t.TempDir()}
	files, err := NewAttachmentStore(cfg)
	require.NoError(t, err)

	f := &fixture{
		store:      newMemoryStore(),
		dispatcher: &recordingDispatcher{},
		files:      files,
		now:        time.Date(2025, 3, 10, 6, 30, 0, 0, time.UTC),
	}
	users := fakeUsers{
		admin.ID:   {Name: admin.Name, Email: admin.Email, Role: admin.Role},
		student.ID: {Name: student.Name, Email: student.Email, Role: student.Role},
	}
	f.service = NewService(f.store, testDirectory(), users, f.dispatcher, files, cfg, zap.NewNop())
	f.service.now = func() time.Time { return f.now }
	return f
}

func ptr[T any](v T) *T { return &v }

func baseInput() NoticeInput {
	return NoticeInput{
		Title:   ptr("Mid-semester exams"),
		Subject: ptr("Exam timetable"),
		Content: ptr("<p>Exams start on <b>Monday</b>.</p>"),
	}
}

// editingStore runs onDue once, right after FindDue has read the due
// notices, to simulate an edit landing before they are promoted.
type editingStore struct {
	*memoryStore
	onDue func()
}

func (e *editingStore) FindDue(ctx context.Context, now time.Time) ([]*Notice, error) {
	due, err := e.memoryStore.FindDue(ctx, now)
	if hook := e.onDue; hook != nil {
		e.onDue = nil
		hook()
	}
	return due, err
}
