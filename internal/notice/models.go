package notice

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusPublished:
		return true
	}
	return false
}

type Priority string

const (
	PriorityNormal       Priority = "Normal"
	PriorityUrgent       Priority = "Urgent"
	PriorityHighlyUrgent Priority = "Highly Urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityUrgent, PriorityHighlyUrgent:
		return true
	}
	return false
}

type SendOptions struct {
	Email    bool `bson:"email" json:"email"`
	Web      bool `bson:"web" json:"web"`
	WhatsApp bool `bson:"whatsapp" json:"whatsapp"`
}

func DefaultSendOptions() SendOptions {
	return SendOptions{Web: true}
}

// Targeting holds the four axes; an empty axis does not constrain.
type Targeting struct {
	Departments []string `bson:"departments" json:"departments"`
	Courses     []string `bson:"program_course" json:"programCourse"`
	Years       []string `bson:"year" json:"year"`
	Sections    []string `bson:"section" json:"section"`
}

// Schedule is the caller's raw scheduling request, kept so partial updates
// can recompute the publish time.
type Schedule struct {
	ScheduleDate bool   `bson:"schedule_date" json:"scheduleDate"`
	ScheduleTime bool   `bson:"schedule_time" json:"scheduleTime"`
	Date         string `bson:"date,omitempty" json:"date,omitempty"`
	Time         string `bson:"time,omitempty" json:"time,omitempty"`
}

type Attachment struct {
	Name       string `bson:"name" json:"name"`
	StoredName string `bson:"stored_name" json:"-"`
}

// ReadEntry aggregates every read of one user.
type ReadEntry struct {
	FirstReadAt time.Time `bson:"first_read_at"`
	LastReadAt  time.Time `bson:"last_read_at"`
	Count       int       `bson:"count"`
}

// Notice is the stored document. Reads is keyed by user id and ReadCount is
// kept equal to len(Reads) by the repository.
type Notice struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title          string             `bson:"title" json:"title"`
	Subject        string             `bson:"subject" json:"subject"`
	Content        string             `bson:"content" json:"content"`
	NoticeType     string             `bson:"notice_type,omitempty" json:"noticeType,omitempty"`
	Specialization string             `bson:"specialization" json:"specialization"`
	From           string             `bson:"from,omitempty" json:"from,omitempty"`

	Targeting       `bson:",inline"`
	ManualEmails    []string `bson:"manual_emails" json:"manualEmails"`
	RecipientEmails []string `bson:"recipient_emails" json:"recipientEmails"`
	RecipientPhones []string `bson:"recipient_phones,omitempty" json:"-"`

	Priority    Priority    `bson:"priority" json:"priority"`
	Status      Status      `bson:"status" json:"status"`
	SendOptions SendOptions `bson:"send_options" json:"sendOptions"`

	Schedule    `bson:",inline"`
	ScheduledAt *time.Time `bson:"scheduled_at,omitempty" json:"scheduledAt,omitempty"`
	PublishedAt *time.Time `bson:"published_at,omitempty" json:"publishedAt,omitempty"`

	CreatedBy   string       `bson:"created_by" json:"-"`
	CreatedAt   time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time    `bson:"updated_at" json:"updatedAt"`
	Attachments []Attachment `bson:"attachments" json:"attachments"`

	Reads     map[string]ReadEntry `bson:"reads" json:"-"`
	ReadCount int                  `bson:"read_count" json:"readCount"`
}

// VisibleToReaders reports whether a non-admin reader may see the notice.
func (n *Notice) VisibleToReaders() bool {
	return n.Status == StatusPublished && n.SendOptions.Web
}

type Creator struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// View is the API representation of a notice.
type View struct {
	*Notice
	CreatedBy Creator `json:"createdBy"`
}

// NoticeInput carries create and update fields. A nil field is "not
// supplied": defaults on create, unchanged on update.
type NoticeInput struct {
	Title          *string `json:"title"`
	Subject        *string `json:"subject"`
	Content        *string `json:"content"`
	NoticeType     *string `json:"notice_type"`
	Specialization *string `json:"specialization"`
	From           *string `json:"from"`

	Departments     *[]string `json:"departments"`
	Courses         *[]string `json:"courses"`
	Years           *[]string `json:"years"`
	Sections        *[]string `json:"sections"`
	RecipientEmails *[]string `json:"recipient_emails"`

	Priority    *Priority    `json:"priority"`
	Status      *Status      `json:"status"`
	SendOptions *SendOptions `json:"send_options"`

	ScheduleDate *bool   `json:"schedule_date"`
	ScheduleTime *bool   `json:"schedule_time"`
	Date         *string `json:"date"`
	Time         *string `json:"time"`

	Attachments []Attachment `json:"-"`
}

func (in NoticeInput) scheduleSupplied() bool {
	return in.ScheduleDate != nil || in.ScheduleTime != nil || in.Date != nil || in.Time != nil
}

func (in NoticeInput) targetingSupplied() bool {
	return in.Departments != nil || in.Courses != nil || in.Years != nil || in.Sections != nil ||
		in.RecipientEmails != nil || in.SendOptions != nil
}

type ReadResult struct {
	IsNewRead bool `json:"isNewRead"`
}

// ReaderProfile holds optional directory fields; unknown values are "unknown".
type ReaderProfile struct {
	RollNumber string `json:"rollNumber"`
	Department string `json:"department"`
	Course     string `json:"course"`
	Section    string `json:"section"`
}

const Unknown = "unknown"

func UnknownProfile() ReaderProfile {
	return ReaderProfile{RollNumber: Unknown, Department: Unknown, Course: Unknown, Section: Unknown}
}

type ReaderReceipt struct {
	UserID      string        `json:"userId"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	ReadCount   int           `json:"readCount"`
	FirstReadAt time.Time     `json:"firstReadAt"`
	LastReadAt  time.Time     `json:"lastReadAt"`
	Profile     ReaderProfile `json:"profile"`
}

type Receipts struct {
	TotalReads    int             `json:"totalReads"`
	UniqueReaders int             `json:"uniqueReaders"`
	Readers       []ReaderReceipt `json:"reads"`
}

type Analytics struct {
	RecipientCount   int        `json:"recipientCount"`
	Priority         Priority   `json:"priority"`
	Status           Status     `json:"status"`
	PublishedAt      *time.Time `json:"publishedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	AttachmentsCount int        `json:"attachmentsCount"`
	ReadCount        int        `json:"readCount"`
	ReadRate         float64    `json:"readRate"`
}

type Summary struct {
	TotalNotices int64            `json:"totalNotices"`
	UniqueReads  int64            `json:"uniqueReads"`
	ByStatus     map[Status]int64 `json:"byStatus"`
}
