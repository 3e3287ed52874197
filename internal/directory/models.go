package directory

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Student is a directory record. The department is stored as "branch".
type Student struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	UnivRollNo    string             `bson:"univ_roll_no"`
	ClassRollNo   string             `bson:"class_roll_no,omitempty"`
	Name          string             `bson:"name"`
	Department    string             `bson:"branch"`
	Course        string             `bson:"course"`
	Year          string             `bson:"year,omitempty"`
	Section       string             `bson:"section,omitempty"`
	Mobile        string             `bson:"student_mobile,omitempty"`
	OfficialEmail string             `bson:"official_email,omitempty"`
	Email         string             `bson:"email,omitempty"`
}

// ContactEmail is the official address, or the login address when no
// official one is on record.
func (s Student) ContactEmail() string {
	if e := strings.TrimSpace(s.OfficialEmail); e != "" {
		return e
	}
	return strings.TrimSpace(s.Email)
}

type Teacher struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	EmployeeID    string             `bson:"employee_id"`
	Name          string             `bson:"name"`
	Department    string             `bson:"department"`
	Post          string             `bson:"post,omitempty"`
	Mobile        string             `bson:"mobile,omitempty"`
	OfficialEmail string             `bson:"official_email,omitempty"`
	Email         string             `bson:"email,omitempty"`
}

// StudentFilter selects students on up to four axes. An empty axis does not
// constrain; non-empty axes are combined with AND.
type StudentFilter struct {
	Departments []string
	Courses     []string
	Years       []string
	Sections    []string
}

func (f StudentFilter) IsEmpty() bool {
	return len(f.Departments) == 0 && len(f.Courses) == 0 && len(f.Years) == 0 && len(f.Sections) == 0
}
