package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-portal-api/internal/dto"
	"github.com/noah-isme/curriculum-portal-api/internal/models"
	"github.com/noah-isme/curriculum-portal-api/internal/repository"
	appErrors "github.com/noah-isme/curriculum-portal-api/pkg/errors"
)

type recordStore interface {
	InTx(ctx context.Context, fn func(tx repository.RecordTx) error) error
	GetByCommonID(ctx context.Context, kind models.RecordKind, commonID string) (*models.Record, error)
	List(ctx context.Context, filter models.RecordFilter) ([]models.Record, error)
	ListVersions(ctx context.Context, kind models.RecordKind, commonID string) ([]models.RecordVersion, error)
}

type accessChecker interface {
	Require(ctx context.Context, actor *models.JWTClaims, courseID string, required models.AccessLevel) error
}

// RecordService creates courses and subjects and runs the propose, accept and
// reject workflow over their editable fields.
type RecordService struct {
	store     recordStore
	access    accessChecker
	events    *EventBus
	notifier  Notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewRecordService constructs the service.
func NewRecordService(store recordStore, access accessChecker, events *EventBus, notifier Notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RecordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{
		store:     store,
		access:    access,
		events:    events,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateCourse stores a new course at version 1 and gives its creator head access.
func (s *RecordService) CreateCourse(ctx context.Context, actor *models.JWTClaims, req dto.CreateCourseRequest) (*dto.RecordResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	record, err := s.newRecord(models.RecordKindCourse, actor, nil, req.Fields())
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx repository.RecordTx) error {
		if err := tx.Insert(ctx, record); err != nil {
			return err
		}
		if err := tx.InsertVersion(ctx, snapshot(record, actor.UserID, s.now())); err != nil {
			return err
		}
		return tx.UpsertGrant(ctx, &models.AccessGrant{
			UserID:    actor.UserID,
			CourseID:  record.CommonID,
			Access:    models.AccessHead,
			GrantedBy: actor.UserID,
		})
	})
	if err != nil {
		return nil, asAppError(err, "failed to create course")
	}
	s.logger.Info("course created", zap.String("commonId", record.CommonID), zap.String("by", actor.UserID))
	return toRecordResponse(record)
}

// CreateSubject stores a new subject under courseID.
func (s *RecordService) CreateSubject(ctx context.Context, actor *models.JWTClaims, courseID string, req dto.CreateSubjectRequest) (*dto.RecordResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if _, err := s.load(ctx, models.RecordKindCourse, courseID); err != nil {
		return nil, err
	}
	if err := s.access.Require(ctx, actor, courseID, models.AccessEdit); err != nil {
		return nil, err
	}
	parent := courseID
	record, err := s.newRecord(models.RecordKindSubject, actor, &parent, req.Fields())
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx repository.RecordTx) error {
		if err := tx.Insert(ctx, record); err != nil {
			return err
		}
		return tx.InsertVersion(ctx, snapshot(record, actor.UserID, s.now()))
	})
	if err != nil {
		return nil, asAppError(err, "failed to create subject")
	}
	s.logger.Info("subject created", zap.String("commonId", record.CommonID), zap.String("courseId", courseID), zap.String("by", actor.UserID))
	return toRecordResponse(record)
}

// Get returns one record the caller can view.
func (s *RecordService) Get(ctx context.Context, actor *models.JWTClaims, kind models.RecordKind, commonID string) (*dto.RecordResponse, error) {
	record, err := s.load(ctx, kind, commonID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Require(ctx, actor, courseOf(record), models.AccessView); err != nil {
		return nil, err
	}
	return toRecordResponse(record)
}

// ListCourses returns the courses visible to the caller.
func (s *RecordService) ListCourses(ctx context.Context, actor *models.JWTClaims) ([]dto.RecordResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.RecordFilter{Kind: models.RecordKindCourse}
	if !actor.IsAdministrator() {
		filter.UserID = actor.UserID
	}
	return s.list(ctx, filter)
}

// ListSubjects returns the subjects of a course.
func (s *RecordService) ListSubjects(ctx context.Context, actor *models.JWTClaims, courseID string) ([]dto.RecordResponse, error) {
	if err := s.access.Require(ctx, actor, courseID, models.AccessView); err != nil {
		return nil, err
	}
	return s.list(ctx, models.RecordFilter{Kind: models.RecordKindSubject, ParentID: courseID})
}

// Versions returns the accepted snapshots of a record, latest first.
func (s *RecordService) Versions(ctx context.Context, actor *models.JWTClaims, kind models.RecordKind, commonID string) ([]models.RecordVersion, error) {
	record, err := s.load(ctx, kind, commonID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Require(ctx, actor, courseOf(record), models.AccessView); err != nil {
		return nil, err
	}
	versions, err := s.store.ListVersions(ctx, kind, commonID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list versions")
	}
	return versions, nil
}

// Propose queues an add, edit or delete on one field. The version is unchanged.
func (s *RecordService) Propose(ctx context.Context, actor *models.JWTClaims, kind models.RecordKind, commonID string, req dto.ProposeUpdateRequest) (*dto.RecordResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	name, index, err := splitProp(req.Prop, req.Index)
	if err != nil {
		return nil, err
	}

	op := models.ProposalEdit
	switch {
	case req.Del:
		op = models.ProposalDelete
		if index == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "index is required to propose a deletion")
		}
	case req.IsNew:
		op = models.ProposalAdd
	}

	var record *models.Record
	err = s.store.InTx(ctx, func(tx repository.RecordTx) error {
		var err error
		record, err = s.lock(ctx, tx, kind, commonID)
		if err != nil {
			return err
		}
		if err := s.access.Require(ctx, actor, courseOf(record), models.AccessEdit); err != nil {
			return err
		}
		doc, field, err := documentField(record, name)
		if err != nil {
			return err
		}

		at := s.now()
		switch op {
		case models.ProposalDelete:
			err = field.ProposeDelete(actor.UserID, *index, at)
		case models.ProposalEdit:
			if !field.Singular() {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is a list; set isNew to add a value", name))
			}
			err = field.ProposeAdd(actor.UserID, req.Data, at)
		default:
			err = field.ProposeAppend(actor.UserID, req.Data, at)
		}
		if err != nil {
			return mapFieldError(err)
		}
		if err := record.SetDocument(doc); err != nil {
			return err
		}
		return tx.UpdateDocument(ctx, record)
	})
	if err != nil {
		return nil, asAppError(err, "failed to propose update")
	}

	s.metrics.RecordProposal(string(kind), string(op))
	s.logger.Info("update proposed",
		zap.String("kind", string(kind)),
		zap.String("commonId", commonID),
		zap.String("field", name),
		zap.String("op", string(op)),
		zap.String("by", actor.UserID),
	)
	return toRecordResponse(record)
}

// Accept applies the pending entry selected by req, bumps the version and
// records a snapshot.
func (s *RecordService) Accept(ctx context.Context, actor *models.JWTClaims, kind models.RecordKind, commonID string, req dto.ResolveUpdateRequest) (*dto.RecordResponse, error) {
	return s.resolve(ctx, actor, kind, commonID, req, true)
}

// Reject drops the pending entry selected by req. The version is unchanged.
func (s *RecordService) Reject(ctx context.Context, actor *models.JWTClaims, kind models.RecordKind, commonID string, req dto.ResolveUpdateRequest) (*dto.RecordResponse, error) {
	return s.resolve(ctx, actor, kind, commonID, req, false)
}

func (s *RecordService) resolve(ctx context.Context, actor *models.JWTClaims, kind models.RecordKind, commonID string, req dto.ResolveUpdateRequest, accept bool) (*dto.RecordResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolve payload")
	}
	name, _, err := splitProp(req.Prop, nil)
	if err != nil {
		return nil, err
	}
	op := models.ProposalEdit
	switch {
	case req.Del:
		op = models.ProposalDelete
	case req.IsNew:
		op = models.ProposalAdd
	}

	var (
		record *models.Record
		label  string
		result models.Resolution
	)
	started := time.Now()
	err = s.store.InTx(ctx, func(tx repository.RecordTx) error {
		var err error
		record, err = s.lock(ctx, tx, kind, commonID)
		if err != nil {
			return err
		}
		if req.ExpectedVersion != nil && *req.ExpectedVersion != record.Version {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("record is at version %d, expected %d", record.Version, *req.ExpectedVersion))
		}
		if err := s.access.Require(ctx, actor, courseOf(record), models.AccessHead); err != nil {
			return err
		}
		doc, field, err := documentField(record, name)
		if err != nil {
			return err
		}
		result, err = field.Resolve(op, *req.Index, accept)
		if err != nil {
			return mapResolveError(err)
		}
		label = doc.Label()
		if err := record.SetDocument(doc); err != nil {
			return err
		}
		if !accept {
			return tx.UpdateDocument(ctx, record)
		}
		record.Version++
		if err := tx.UpdateDocument(ctx, record); err != nil {
			return err
		}
		return tx.InsertVersion(ctx, snapshot(record, actor.UserID, s.now()))
	})
	s.metrics.ObserveDBQuery("record_resolve", time.Since(started))
	if err != nil {
		return nil, asAppError(err, "failed to resolve update")
	}

	decision := "rejected"
	if accept {
		decision = "accepted"
	}
	s.metrics.RecordResolution(string(kind), decision)
	s.logger.Info("update resolved",
		zap.String("kind", string(kind)),
		zap.String("commonId", commonID),
		zap.String("field", name),
		zap.String("op", string(op)),
		zap.String("decision", decision),
		zap.Int("version", record.Version),
		zap.String("by", actor.UserID),
	)

	if accept {
		evt := RecordChanged{
			Kind:       kind,
			CommonID:   commonID,
			Version:    record.Version,
			Field:      name,
			Resolution: result,
			ChangedBy:  actor.UserID,
			Title:      req.Title,
			Label:      label,
			ChangedAt:  record.UpdatedAt,
		}
		if record.ParentID != nil {
			evt.ParentID = *record.ParentID
		}
		s.events.Publish(ctx, evt)
	} else if s.notifier != nil && result.By != "" && result.By != actor.UserID {
		if err := s.notifier.Notify(ctx, models.Notification{
			UserID:  result.By,
			Heading: "Update rejected",
			Message: changeMessage(req.Title, label, name, "rejected"),
			Link:    recordLink(kind, commonID),
		}); err != nil {
			s.logger.Warn("failed to notify proposer", zap.String("userId", result.By), zap.Error(err))
		}
	}
	return toRecordResponse(record)
}

func (s *RecordService) newRecord(kind models.RecordKind, actor *models.JWTClaims, parentID *string, values map[string]interface{}) (*models.Record, error) {
	doc, err := models.NewDocument(kind)
	if err != nil {
		return nil, appErrors.Internal(err, "unknown record kind")
	}
	for _, name := range doc.FieldNames() {
		field, _ := doc.Field(name)
		if err := field.Bootstrap(values[name]); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid %s", name))
		}
	}
	record := &models.Record{Kind: kind, ParentID: parentID, CreatedBy: actor.UserID}
	if err := record.SetDocument(doc); err != nil {
		return nil, appErrors.Internal(err, "failed to encode record")
	}
	return record, nil
}

func (s *RecordService) load(ctx context.Context, kind models.RecordKind, commonID string) (*models.Record, error) {
	record, err := s.store.GetByCommonID(ctx, kind, commonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", kind))
		}
		return nil, appErrors.Internal(err, fmt.Sprintf("failed to load %s", kind))
	}
	return record, nil
}

func (s *RecordService) lock(ctx context.Context, tx repository.RecordTx, kind models.RecordKind, commonID string) (*models.Record, error) {
	record, err := tx.GetForUpdate(ctx, kind, commonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", kind))
		}
		return nil, err
	}
	return record, nil
}

func (s *RecordService) list(ctx context.Context, filter models.RecordFilter) ([]dto.RecordResponse, error) {
	records, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list records")
	}
	out := make([]dto.RecordResponse, 0, len(records))
	for i := range records {
		resp, err := toRecordResponse(&records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

func documentField(record *models.Record, name string) (models.Document, models.Editable, error) {
	doc, err := record.Document()
	if err != nil {
		return nil, nil, err
	}
	field, ok := doc.Field(name)
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("field %q not found on %s", name, record.Kind))
	}
	return doc, field, nil
}

// splitProp accepts "field" or "field.index". An explicit index wins over the
// suffix.
func splitProp(prop string, explicit *int) (string, *int, error) {
	prop = strings.TrimSpace(prop)
	name, suffix, found := strings.Cut(prop, ".")
	if name == "" {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "prop is required")
	}
	if explicit != nil {
		return name, explicit, nil
	}
	if !found {
		return name, nil, nil
	}
	idx, err := strconv.Atoi(suffix)
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid index in prop %q", prop))
	}
	return name, &idx, nil
}

func courseOf(record *models.Record) string {
	if record.Kind == models.RecordKindSubject && record.ParentID != nil {
		return *record.ParentID
	}
	return record.CommonID
}

func snapshot(record *models.Record, by string, at time.Time) *models.RecordVersion {
	return &models.RecordVersion{
		CommonID:  record.CommonID,
		Version:   record.Version,
		Kind:      record.Kind,
		Fields:    record.Fields,
		ChangedBy: by,
		ChangedAt: at,
	}
}

func toRecordResponse(record *models.Record) (*dto.RecordResponse, error) {
	doc, err := record.Document()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to decode record")
	}
	return &dto.RecordResponse{
		ID:        record.ID,
		Kind:      record.Kind,
		CommonID:  record.CommonID,
		ParentID:  record.ParentID,
		Version:   record.Version,
		CreatedBy: record.CreatedBy,
		Fields:    doc,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

func mapFieldError(err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidIndex):
		return appErrors.Wrap(err, appErrors.ErrInvalidIndex.Code, appErrors.ErrInvalidIndex.Status, err.Error())
	case errors.Is(err, models.ErrInvalidValue), errors.Is(err, models.ErrUnsupportedOp), errors.Is(err, models.ErrFieldInitialized):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	default:
		return err
	}
}

// mapResolveError treats an index that no longer points at a pending entry or
// current element as a lost race with another reviewer.
func mapResolveError(err error) error {
	if errors.Is(err, models.ErrInvalidIndex) {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "the update is no longer pending at that index; reload the record")
	}
	return mapFieldError(err)
}

func asAppError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Internal(err, message)
}
