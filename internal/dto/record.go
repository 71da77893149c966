package dto

import (
	"time"

	"github.com/noah-isme/curriculum-portal-api/internal/models"
)

// CreateCourseRequest seeds the editable fields of a new course.
type CreateCourseRequest struct {
	Title      string   `json:"title" validate:"required,max=200"`
	Level      string   `json:"level" validate:"omitempty,max=100"`
	Program    string   `json:"program" validate:"omitempty,max=200"`
	Objectives []string `json:"objectives" validate:"omitempty,dive,required"`
	Outcomes   []string `json:"outcomes" validate:"omitempty,dive,required"`
}

// Fields maps the payload onto document field names.
func (r CreateCourseRequest) Fields() map[string]interface{} {
	return map[string]interface{}{
		"title":      r.Title,
		"level":      r.Level,
		"program":    r.Program,
		"objectives": r.Objectives,
		"outcomes":   r.Outcomes,
	}
}

// CreateSubjectRequest seeds the editable fields of a new subject.
type CreateSubjectRequest struct {
	Title             string              `json:"title" validate:"required,max=200"`
	Objectives        []string            `json:"objectives" validate:"omitempty,dive,required"`
	Prerequisites     []string            `json:"prerequisites" validate:"omitempty,dive,required"`
	Modules           []models.Module     `json:"modules" validate:"omitempty,dive"`
	Experiments       []models.Experiment `json:"experiments" validate:"omitempty,dive"`
	ReferenceMaterial []string            `json:"referenceMaterial" validate:"omitempty,dive,required"`
	Outcomes          []string            `json:"outcomes" validate:"omitempty,dive,required"`
}

// Fields maps the payload onto document field names.
func (r CreateSubjectRequest) Fields() map[string]interface{} {
	return map[string]interface{}{
		"title":             r.Title,
		"objectives":        r.Objectives,
		"prerequisites":     r.Prerequisites,
		"modules":           r.Modules,
		"experiments":       r.Experiments,
		"referenceMaterial": r.ReferenceMaterial,
		"outcomes":          r.Outcomes,
	}
}

// ProposeUpdateRequest queues a change to one editable field. Prop may carry
// the target index as "field.index" for deletions.
type ProposeUpdateRequest struct {
	Prop  string      `json:"prop" validate:"required"`
	Data  interface{} `json:"data"`
	IsNew bool        `json:"isNew"`
	Del   bool        `json:"del"`
	Index *int        `json:"index"`
}

// ResolveUpdateRequest accepts or rejects the pending entry at Index of the
// queue selected by IsNew and Del.
type ResolveUpdateRequest struct {
	Prop            string `json:"prop" validate:"required"`
	Index           *int   `json:"index" validate:"required,min=0"`
	IsNew           bool   `json:"isNew"`
	Del             bool   `json:"del"`
	Title           string `json:"title"`
	ExpectedVersion *int   `json:"expectedVersion" validate:"omitempty,min=1"`
}

// RecordResponse is a record with its decoded document.
type RecordResponse struct {
	ID        string            `json:"id"`
	Kind      models.RecordKind `json:"kind"`
	CommonID  string            `json:"commonId"`
	ParentID  *string           `json:"parentId,omitempty"`
	Version   int               `json:"version"`
	CreatedBy string            `json:"createdBy"`
	Fields    models.Document   `json:"fields"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
