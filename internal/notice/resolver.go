package notice

import (
	"SmartNotice/internal/directory"
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Criteria is the targeting request handed to the Resolver.
type Criteria struct {
	ManualEmails []string
	Targeting
	IncludePhones bool
}

func (c Criteria) filter() directory.StudentFilter {
	return directory.StudentFilter{
		Departments: c.Departments,
		Courses:     c.Courses,
		Years:       c.Years,
		Sections:    c.Sections,
	}
}

// Recipients are deduplicated in first-seen order: manual addresses, then
// students, then teachers.
type Recipients struct {
	Emails []string
	Phones []string
}

// Resolver materializes a recipient set from targeting criteria.
type Resolver struct {
	dir directory.Directory
}

func NewResolver(dir directory.Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the union of the manual addresses, every student matching
// all non-empty axes and every teacher in the selected departments. Teachers
// are matched on department only. Addresses are compared as-is, case
// included.
func (r *Resolver) Resolve(ctx context.Context, c Criteria) (Recipients, error) {
	emails := newOrderedSet()
	phones := newOrderedSet()

	for _, e := range c.ManualEmails {
		emails.add(e)
	}

	students, err := r.dir.MatchStudents(ctx, c.filter())
	if err != nil {
		return Recipients{}, errors.Wrap(err, "resolve students")
	}
	for _, s := range students {
		emails.add(s.ContactEmail())
		if c.IncludePhones {
			phones.add(s.Mobile)
		}
	}

	teachers, err := r.dir.TeachersInDepartments(ctx, c.Departments)
	if err != nil {
		return Recipients{}, errors.Wrap(err, "resolve teachers")
	}
	for _, t := range teachers {
		official := strings.TrimSpace(t.OfficialEmail)
		if official == "" {
			official = t.Email
		}
		emails.add(official)
		if c.IncludePhones {
			phones.add(t.Mobile)
		}
	}

	return Recipients{Emails: emails.items, Phones: phones.items}, nil
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

// add trims v and ignores blanks and repeats.
func (s *orderedSet) add(v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

// cleanList trims, drops blanks and removes repeats from a targeting axis.
func cleanList(values []string) []string {
	set := newOrderedSet()
	for _, v := range values {
		set.add(v)
	}
	return set.items
}
