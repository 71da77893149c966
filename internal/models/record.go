package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RecordKind distinguishes the two record documents.
type RecordKind string

const (
	RecordKindCourse  RecordKind = "course"
	RecordKindSubject RecordKind = "subject"
)

// Valid reports whether k is a known kind.
func (k RecordKind) Valid() bool {
	return k == RecordKindCourse || k == RecordKindSubject
}

// Record is a course or subject row. Fields holds the JSON document of
// editable fields for the kind.
type Record struct {
	ID        string         `db:"id" json:"id"`
	Kind      RecordKind     `db:"kind" json:"kind"`
	CommonID  string         `db:"common_id" json:"commonId"`
	ParentID  *string        `db:"parent_id" json:"parentId,omitempty"`
	Version   int            `db:"version" json:"version"`
	CreatedBy string         `db:"created_by" json:"createdBy"`
	Fields    types.JSONText `db:"fields" json:"fields"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

// Document decodes Fields into the document type of the record kind.
func (r *Record) Document() (Document, error) {
	doc, err := NewDocument(r.Kind)
	if err != nil {
		return nil, err
	}
	if len(r.Fields) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(r.Fields, doc); err != nil {
		return nil, fmt.Errorf("decode %s document: %w", r.Kind, err)
	}
	return doc, nil
}

// SetDocument encodes doc into Fields.
func (r *Record) SetDocument(doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", r.Kind, err)
	}
	r.Fields = types.JSONText(data)
	return nil
}

// RecordVersion is the snapshot of a record document after a change.
type RecordVersion struct {
	CommonID  string         `db:"common_id" json:"commonId"`
	Version   int            `db:"version" json:"version"`
	Kind      RecordKind     `db:"kind" json:"kind"`
	Fields    types.JSONText `db:"fields" json:"fields"`
	ChangedBy string         `db:"changed_by" json:"changedBy"`
	ChangedAt time.Time      `db:"changed_at" json:"changedAt"`
}

// RecordFilter constrains record listings.
type RecordFilter struct {
	Kind     RecordKind
	ParentID string
	// UserID limits courses to those the user holds a grant on.
	UserID string
}

// Document is a record's set of editable fields addressed by name.
type Document interface {
	Field(name string) (Editable, bool)
	FieldNames() []string
	Label() string
}

// NewDocument returns an empty document for kind.
func NewDocument(kind RecordKind) (Document, error) {
	switch kind {
	case RecordKindCourse:
		return &CourseDocument{}, nil
	case RecordKindSubject:
		return &SubjectDocument{}, nil
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}

// CourseDocument is the editable content of a course.
type CourseDocument struct {
	Title      EditableField[string] `json:"title"`
	Level      EditableField[string] `json:"level"`
	Program    EditableField[string] `json:"program"`
	Objectives EditableField[string] `json:"objectives"`
	Outcomes   EditableField[string] `json:"outcomes"`
}

// Field resolves an editable field by its JSON name.
func (d *CourseDocument) Field(name string) (Editable, bool) {
	switch name {
	case "title":
		return Bind(&d.Title, true), true
	case "level":
		return Bind(&d.Level, true), true
	case "program":
		return Bind(&d.Program, true), true
	case "objectives":
		return Bind(&d.Objectives, false), true
	case "outcomes":
		return Bind(&d.Outcomes, false), true
	}
	return nil, false
}

// FieldNames lists the editable fields in display order.
func (d *CourseDocument) FieldNames() []string {
	return []string{"title", "level", "program", "objectives", "outcomes"}
}

// Label is the accepted title, if any.
func (d *CourseDocument) Label() string { return first(d.Title.Current) }

// Module is a unit of a subject syllabus.
type Module struct {
	Title  string   `json:"title"`
	Topics []string `json:"topics"`
}

// Validate requires a title.
func (m *Module) Validate() error {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return errors.New("module title is required")
	}
	if m.Topics == nil {
		m.Topics = []string{}
	}
	return nil
}

// Experiment is a lab activity with an optional link.
type Experiment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Validate requires a name.
func (e *Experiment) Validate() error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return errors.New("experiment name is required")
	}
	e.URL = strings.TrimSpace(e.URL)
	return nil
}

// SubjectDocument is the editable content of a subject.
type SubjectDocument struct {
	Title             EditableField[string]     `json:"title"`
	Objectives        EditableField[string]     `json:"objectives"`
	Prerequisites     EditableField[string]     `json:"prerequisites"`
	Modules           EditableField[Module]     `json:"modules"`
	Experiments       EditableField[Experiment] `json:"experiments"`
	ReferenceMaterial EditableField[string]     `json:"referenceMaterial"`
	Outcomes          EditableField[string]     `json:"outcomes"`
}

// Field resolves an editable field by its JSON name.
func (d *SubjectDocument) Field(name string) (Editable, bool) {
	switch name {
	case "title":
		return Bind(&d.Title, true), true
	case "objectives":
		return Bind(&d.Objectives, false), true
	case "prerequisites":
		return Bind(&d.Prerequisites, false), true
	case "modules":
		return Bind(&d.Modules, false), true
	case "experiments":
		return Bind(&d.Experiments, false), true
	case "referenceMaterial":
		return Bind(&d.ReferenceMaterial, false), true
	case "outcomes":
		return Bind(&d.Outcomes, false), true
	}
	return nil, false
}

// FieldNames lists the editable fields in display order.
func (d *SubjectDocument) FieldNames() []string {
	return []string{"title", "objectives", "prerequisites", "modules", "experiments", "referenceMaterial", "outcomes"}
}

// Label is the accepted title, if any.
func (d *SubjectDocument) Label() string { return first(d.Title.Current) }

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
