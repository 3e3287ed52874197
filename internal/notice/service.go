package notice

import (
	"SmartNotice/internal/apperr"
	"SmartNotice/internal/auth"
	"SmartNotice/internal/config"
	"SmartNotice/internal/delivery"
	"SmartNotice/internal/directory"
	"context"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const defaultSpecialization = "core"

// Dispatcher accepts a message for background delivery.
type Dispatcher interface {
	Dispatch(msg delivery.Message) bool
}

// UserLookup resolves creator and reader ids to user records.
type UserLookup interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*auth.User, error)
}

// FileStore locates and removes stored attachment files.
type FileStore interface {
	Path(a Attachment) string
	Remove(a Attachment) error
}

// Service owns the notice lifecycle, read receipts and analytics.
type Service struct {
	store      Store
	resolver   *Resolver
	dir        directory.Directory
	users      UserLookup
	dispatcher Dispatcher
	files      FileStore
	loc        *time.Location
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(store Store, dir directory.Directory, users UserLookup, dispatcher Dispatcher, files FileStore, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		resolver:   NewResolver(dir),
		dir:        dir,
		users:      users,
		dispatcher: dispatcher,
		files:      files,
		loc:        cfg.Location,
		logger:     logger,
		now:        time.Now,
	}
}

// clock is truncated to the store's millisecond precision.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func parsePriority(p Priority) (Priority, error) {
	switch strings.TrimSpace(string(p)) {
	case "":
		return PriorityNormal, nil
	case "HighlyUrgent":
		return PriorityHighlyUrgent, nil
	}
	p = Priority(strings.TrimSpace(string(p)))
	if !p.Valid() {
		return "", apperr.Validation("priority", "must be Normal, Urgent or Highly Urgent")
	}
	return p, nil
}

// apply copies the supplied fields of in onto n.
func apply(n *Notice, in NoticeInput) error {
	if in.Title != nil {
		n.Title = strings.TrimSpace(*in.Title)
	}
	if in.Subject != nil {
		n.Subject = strings.TrimSpace(*in.Subject)
	}
	if in.Content != nil {
		n.Content = *in.Content
	}
	if in.NoticeType != nil {
		n.NoticeType = strings.TrimSpace(*in.NoticeType)
	}
	if in.Specialization != nil {
		n.Specialization = strings.TrimSpace(*in.Specialization)
	}
	if in.From != nil {
		n.From = strings.TrimSpace(*in.From)
	}
	if in.Departments != nil {
		n.Departments = cleanList(*in.Departments)
	}
	if in.Courses != nil {
		n.Courses = cleanList(*in.Courses)
	}
	if in.Years != nil {
		n.Years = cleanList(*in.Years)
	}
	if in.Sections != nil {
		n.Sections = cleanList(*in.Sections)
	}
	if in.RecipientEmails != nil {
		n.ManualEmails = cleanList(*in.RecipientEmails)
	}
	if in.Priority != nil {
		p, err := parsePriority(*in.Priority)
		if err != nil {
			return err
		}
		n.Priority = p
	}
	if in.SendOptions != nil {
		n.SendOptions = *in.SendOptions
	}
	if in.ScheduleDate != nil {
		n.ScheduleDate = *in.ScheduleDate
	}
	if in.ScheduleTime != nil {
		n.ScheduleTime = *in.ScheduleTime
	}
	if in.Date != nil {
		n.Date = strings.TrimSpace(*in.Date)
	}
	if in.Time != nil {
		n.Time = strings.TrimSpace(*in.Time)
	}

	switch {
	case n.Title == "":
		return apperr.Validation("title", "required")
	case n.Subject == "":
		return apperr.Validation("subject", "required")
	case strings.TrimSpace(n.Content) == "":
		return apperr.Validation("content", "required")
	}
	return nil
}

func requestedStatus(in NoticeInput) (Status, error) {
	if in.Status == nil || *in.Status == "" {
		return "", nil
	}
	st := Status(strings.ToLower(strings.TrimSpace(string(*in.Status))))
	if !st.Valid() {
		return "", apperr.Validation("status", "must be draft, scheduled or published")
	}
	return st, nil
}

func (s *Service) resolve(ctx context.Context, n *Notice) error {
	r, err := s.resolver.Resolve(ctx, Criteria{
		ManualEmails:  n.ManualEmails,
		Targeting:     n.Targeting,
		IncludePhones: n.SendOptions.WhatsApp,
	})
	if err != nil {
		return err
	}
	n.RecipientEmails = r.Emails
	n.RecipientPhones = r.Phones
	return nil
}

// Create persists a new notice and dispatches it when it is born published.
// Uploaded attachments are removed if creation fails.
func (s *Service) Create(ctx context.Context, p auth.Principal, in NoticeInput) (n *Notice, err error) {
	defer func() {
		if err != nil {
			s.discard(in.Attachments)
		}
	}()

	n = &Notice{
		ID:             primitive.NewObjectID(),
		Priority:       PriorityNormal,
		Specialization: defaultSpecialization,
		SendOptions:    DefaultSendOptions(),
		CreatedBy:      p.ID,
		Reads:          map[string]ReadEntry{},
	}
	if err := apply(n, in); err != nil {
		return nil, err
	}
	requested, err := requestedStatus(in)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	n.Status, n.ScheduledAt, err = resolveStatus(requested, n.Schedule, now, s.loc)
	if err != nil {
		return nil, err
	}
	if err := s.resolve(ctx, n); err != nil {
		return nil, err
	}
	n.CreatedAt, n.UpdatedAt = now, now
	if n.Status == StatusPublished {
		n.PublishedAt = &now
	}
	n.Attachments = append([]Attachment{}, in.Attachments...)

	if err := s.store.Insert(ctx, n); err != nil {
		return nil, err
	}
	s.logger.Info("notice created",
		zap.String("notice_id", n.ID.Hex()),
		zap.String("status", string(n.Status)),
		zap.Int("recipients", len(n.RecipientEmails)))

	if n.Status == StatusPublished {
		s.publish(n)
	}
	return n, nil
}

// Update applies the supplied fields. Schedule fields recompute the status;
// targeting fields re-resolve recipients. Entering published dispatches.
func (s *Service) Update(ctx context.Context, p auth.Principal, id string, in NoticeInput) (n *Notice, err error) {
	defer func() {
		if err != nil {
			s.discard(in.Attachments)
		}
	}()

	n, err = s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errors.Wrap(apperr.ErrNotFound, "notice")
	}
	if err := authorizeOwner(p, n); err != nil {
		return nil, err
	}

	prevStatus, prevUpdatedAt := n.Status, n.UpdatedAt
	if err := apply(n, in); err != nil {
		return nil, err
	}
	requested, err := requestedStatus(in)
	if err != nil {
		return nil, err
	}
	if requested == "" {
		requested = prevStatus
	}

	now := s.clock()
	switch {
	case in.scheduleSupplied():
		n.Status, n.ScheduledAt, err = resolveStatus(requested, n.Schedule, now, s.loc)
		if err != nil {
			return nil, err
		}
	case requested == StatusScheduled && prevStatus != StatusScheduled:
		return nil, apperr.Validation("status", "scheduled notices need schedule_date and date")
	default:
		n.Status = requested
		if n.Status != StatusScheduled {
			n.ScheduledAt = nil
		}
	}
	if n.Status == StatusDraft && prevStatus != StatusDraft {
		return nil, apperr.Validation("status", "a "+string(prevStatus)+" notice cannot return to draft")
	}

	if in.targetingSupplied() {
		if err := s.resolve(ctx, n); err != nil {
			return nil, err
		}
	}
	n.Attachments = append(n.Attachments, in.Attachments...)
	n.UpdatedAt = now
	entering := n.Status == StatusPublished && prevStatus != StatusPublished
	if entering {
		n.PublishedAt = &now
	}

	if err := s.store.Update(ctx, n, prevUpdatedAt); err != nil {
		return nil, err
	}
	s.logger.Info("notice updated",
		zap.String("notice_id", n.ID.Hex()),
		zap.String("from", string(prevStatus)),
		zap.String("to", string(n.Status)))

	if entering {
		s.publish(n)
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return errors.Wrap(apperr.ErrNotFound, "notice")
	}
	if err := authorizeOwner(p, n); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return errors.Wrap(apperr.ErrNotFound, "notice")
	}
	s.discard(n.Attachments)
	s.logger.Info("notice deleted", zap.String("notice_id", id), zap.String("by", p.ID))
	return nil
}

func authorizeOwner(p auth.Principal, n *Notice) error {
	if p.IsAdmin() || (p.ID != "" && p.ID == n.CreatedBy) {
		return nil
	}
	return errors.Wrap(apperr.ErrForbidden, "only the creator or an admin may modify this notice")
}

// visible loads a notice the principal may see. Hidden notices are reported
// as missing.
func (s *Service) visible(ctx context.Context, p auth.Principal, id string) (*Notice, error) {
	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil || (!p.IsAdmin() && !n.VisibleToReaders()) {
		return nil, errors.Wrap(apperr.ErrNotFound, "notice")
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (View, error) {
	n, err := s.visible(ctx, p, id)
	if err != nil {
		return View{}, err
	}
	views, err := s.views(ctx, []*Notice{n})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// List returns notices newest first. Non-admins only see published web
// notices.
func (s *Service) List(ctx context.Context, p auth.Principal) ([]View, error) {
	notices, err := s.store.List(ctx, ListFilter{ReadersOnly: !p.IsAdmin()})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, notices)
}

func (s *Service) ListByCreator(ctx context.Context, p auth.Principal, userID string) ([]View, error) {
	if !p.IsAdmin() && p.ID != userID {
		return nil, errors.Wrap(apperr.ErrForbidden, "notices of another user")
	}
	notices, err := s.store.List(ctx, ListFilter{CreatedBy: userID, ReadersOnly: !p.IsAdmin()})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, notices)
}

func (s *Service) views(ctx context.Context, notices []*Notice) ([]View, error) {
	ids := make([]string, 0, len(notices))
	for _, n := range notices {
		ids = append(ids, n.CreatedBy)
	}
	users, err := s.users.FindByIDs(ctx, cleanList(ids))
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(notices))
	for _, n := range notices {
		creator := Creator{ID: n.CreatedBy, Name: "Unknown"}
		if u, ok := users[n.CreatedBy]; ok {
			creator.Name, creator.Email = u.Name, u.Email
		}
		out = append(out, View{Notice: n, CreatedBy: creator})
	}
	return out, nil
}

// MarkRead records that p opened the notice.
func (s *Service) MarkRead(ctx context.Context, p auth.Principal, id string) (ReadResult, error) {
	if _, err := s.visible(ctx, p, id); err != nil {
		return ReadResult{}, err
	}
	isNew, err := s.store.RecordRead(ctx, id, p.ID, s.clock())
	if err != nil {
		return ReadResult{}, err
	}
	s.logger.Debug("notice read",
		zap.String("notice_id", id),
		zap.String("user_id", p.ID),
		zap.Bool("first", isNew))
	return ReadResult{IsNewRead: isNew}, nil
}

func requireAdmin(p auth.Principal) error {
	if p.IsAdmin() {
		return nil
	}
	return errors.Wrap(apperr.ErrForbidden, "admin only")
}

func (s *Service) adminNotice(ctx context.Context, p auth.Principal, id string) (*Notice, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errors.Wrap(apperr.ErrNotFound, "notice")
	}
	return n, nil
}

// Receipts aggregates the reads of a notice, most recent reader first.
func (s *Service) Receipts(ctx context.Context, p auth.Principal, id string) (Receipts, error) {
	n, err := s.adminNotice(ctx, p, id)
	if err != nil {
		return Receipts{}, err
	}

	ids := make([]string, 0, len(n.Reads))
	for uid := range n.Reads {
		ids = append(ids, uid)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return Receipts{}, err
	}
	profiles, err := s.profiles(ctx, users)
	if err != nil {
		return Receipts{}, err
	}

	out := Receipts{UniqueReaders: len(n.Reads), Readers: make([]ReaderReceipt, 0, len(n.Reads))}
	for uid, e := range n.Reads {
		r := ReaderReceipt{
			UserID:      uid,
			Name:        "Unknown",
			ReadCount:   e.Count,
			FirstReadAt: e.FirstReadAt,
			LastReadAt:  e.LastReadAt,
			Profile:     UnknownProfile(),
		}
		if u, ok := users[uid]; ok {
			r.Name, r.Email = u.Name, u.Email
			if prof, ok := profiles[u.Email]; ok {
				r.Profile = prof
			}
		}
		out.TotalReads += e.Count
		out.Readers = append(out.Readers, r)
	}
	sort.Slice(out.Readers, func(i, j int) bool {
		a, b := out.Readers[i], out.Readers[j]
		if !a.LastReadAt.Equal(b.LastReadAt) {
			return a.LastReadAt.After(b.LastReadAt)
		}
		return a.UserID < b.UserID
	})
	return out, nil
}

// profiles maps reader emails to their student record fields.
func (s *Service) profiles(ctx context.Context, users map[string]*auth.User) (map[string]ReaderProfile, error) {
	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	students, err := s.dir.StudentsByEmails(ctx, cleanList(emails))
	if err != nil {
		return nil, err
	}
	out := make(map[string]ReaderProfile, len(students))
	for _, st := range students {
		prof := ReaderProfile{
			RollNumber: orUnknown(st.UnivRollNo),
			Department: orUnknown(st.Department),
			Course:     orUnknown(st.Course),
			Section:    orUnknown(st.Section),
		}
		for _, e := range []string{st.Email, st.OfficialEmail} {
			if e = strings.TrimSpace(e); e != "" {
				out[e] = prof
			}
		}
	}
	return out, nil
}

func orUnknown(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return Unknown
}

func (s *Service) Analytics(ctx context.Context, p auth.Principal, id string) (Analytics, error) {
	n, err := s.adminNotice(ctx, p, id)
	if err != nil {
		return Analytics{}, err
	}
	a := Analytics{
		RecipientCount:   len(n.RecipientEmails),
		Priority:         n.Priority,
		Status:           n.Status,
		PublishedAt:      n.PublishedAt,
		CreatedAt:        n.CreatedAt,
		AttachmentsCount: len(n.Attachments),
		ReadCount:        n.ReadCount,
	}
	if a.RecipientCount > 0 {
		a.ReadRate = float64(a.ReadCount) / float64(a.RecipientCount)
	}
	return a, nil
}

func (s *Service) Summary(ctx context.Context, p auth.Principal) (Summary, error) {
	if err := requireAdmin(p); err != nil {
		return Summary{}, err
	}
	return s.store.Stats(ctx)
}

// PublishDue promotes scheduled notices whose time has come and dispatches
// each one it promoted. A notice promoted or edited elsewhere in the
// meantime is skipped; an edited one is picked up again on a later tick if
// it is still due.
func (s *Service) PublishDue(ctx context.Context) (int, error) {
	now := s.clock()
	due, err := s.store.FindDue(ctx, now)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, n := range due {
		ok, err := s.store.MarkPublished(ctx, n.ID, n.UpdatedAt, now)
		if err != nil {
			s.logger.Error("publishing scheduled notice", zap.String("notice_id", n.ID.Hex()), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		n.Status, n.ScheduledAt, n.PublishedAt, n.UpdatedAt = StatusPublished, nil, &now, now
		s.publish(n)
		published++
	}
	return published, nil
}

// publish hands n to the dispatcher. Delivery problems never fail the
// caller.
func (s *Service) publish(n *Notice) {
	msg := s.message(n)
	if !msg.HasRecipients() {
		s.logger.Debug("nothing to dispatch", zap.String("notice_id", n.ID.Hex()))
		return
	}
	if !s.dispatcher.Dispatch(msg) {
		s.logger.Warn("notice not dispatched", zap.String("notice_id", n.ID.Hex()))
	}
}

func (s *Service) message(n *Notice) delivery.Message {
	msg := delivery.Message{
		NoticeID: n.ID.Hex(),
		Subject:  n.Subject,
		HTMLBody: renderHTML(n),
		TextBody: n.Title + "\n\n" + delivery.PlainText(n.Content),
	}
	if n.SendOptions.Email {
		msg.Emails = n.RecipientEmails
	}
	if n.SendOptions.WhatsApp {
		msg.Phones = n.RecipientPhones
	}
	for _, a := range n.Attachments {
		msg.Attachments = append(msg.Attachments, delivery.Attachment{Name: a.Name, Path: s.files.Path(a)})
	}
	return msg
}

func renderHTML(n *Notice) string {
	var b strings.Builder
	b.WriteString("<h2>")
	b.WriteString(html.EscapeString(n.Title))
	b.WriteString("</h2>\n")
	if n.From != "" {
		b.WriteString("<p><strong>From:</strong> ")
		b.WriteString(html.EscapeString(n.From))
		b.WriteString("</p>\n")
	}
	b.WriteString(n.Content)
	return b.String()
}

func (s *Service) discard(attachments []Attachment) {
	for _, a := range attachments {
		if err := s.files.Remove(a); err != nil {
			s.logger.Warn("removing attachment", zap.String("file", a.StoredName), zap.Error(err))
		}
	}
}
