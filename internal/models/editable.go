package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Errors returned by editable fields. Services map them onto API errors.
var (
	ErrInvalidIndex     = errors.New("index out of range")
	ErrInvalidValue     = errors.New("value does not match field type")
	ErrUnsupportedOp    = errors.New("operation not supported by field")
	ErrFieldInitialized = errors.New("field already holds values")
)

// ProposalKind identifies which pending queue a proposal lives in.
type ProposalKind string

const (
	ProposalAdd    ProposalKind = "add"
	ProposalDelete ProposalKind = "delete"
	// ProposalEdit is a replacement candidate for a singular field. It is
	// queued alongside additions.
	ProposalEdit ProposalKind = "edit"
)

// PendingAdd is a proposed value awaiting review.
type PendingAdd[T any] struct {
	By         string    `json:"by"`
	Value      T         `json:"value"`
	ProposedAt time.Time `json:"proposedAt"`
}

// PendingDelete is a proposed removal of Current[Index].
type PendingDelete struct {
	By         string    `json:"by"`
	Index      int       `json:"index"`
	ProposedAt time.Time `json:"proposedAt"`
}

// EditableField holds the accepted values of an attribute together with the
// proposals waiting to change them. Current only changes through acceptance
// or the initial bootstrap of a new record.
type EditableField[T any] struct {
	Current       []T             `json:"cur"`
	PendingAdd    []PendingAdd[T] `json:"add"`
	PendingDelete []PendingDelete `json:"del"`
}

// MarshalJSON always emits arrays, never null.
func (f EditableField[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		Current       []T             `json:"cur"`
		PendingAdd    []PendingAdd[T] `json:"add"`
		PendingDelete []PendingDelete `json:"del"`
	}{f.Current, f.PendingAdd, f.PendingDelete}
	if out.Current == nil {
		out.Current = []T{}
	}
	if out.PendingAdd == nil {
		out.PendingAdd = []PendingAdd[T]{}
	}
	if out.PendingDelete == nil {
		out.PendingDelete = []PendingDelete{}
	}
	return json.Marshal(out)
}

// ProposeAdd queues value for addition (or replacement on singular fields).
func (f *EditableField[T]) ProposeAdd(by string, value T, at time.Time) {
	f.PendingAdd = append(f.PendingAdd, PendingAdd[T]{By: by, Value: value, ProposedAt: at})
}

// ProposeDelete queues removal of Current[index].
func (f *EditableField[T]) ProposeDelete(by string, index int, at time.Time) error {
	if index < 0 || index >= len(f.Current) {
		return fmt.Errorf("delete index %d of %d values: %w", index, len(f.Current), ErrInvalidIndex)
	}
	f.PendingDelete = append(f.PendingDelete, PendingDelete{By: by, Index: index, ProposedAt: at})
	return nil
}

// AcceptAdd moves PendingAdd[i] to the end of Current.
func (f *EditableField[T]) AcceptAdd(i int) (PendingAdd[T], error) {
	entry, err := f.takeAdd(i)
	if err != nil {
		return entry, err
	}
	f.Current = append(f.Current, entry.Value)
	return entry, nil
}

// AcceptReplace makes PendingAdd[i] the only current value.
func (f *EditableField[T]) AcceptReplace(i int) (PendingAdd[T], error) {
	entry, err := f.takeAdd(i)
	if err != nil {
		return entry, err
	}
	f.Current = []T{entry.Value}
	// Every queued delete pointed into the replaced values.
	f.PendingDelete = nil
	return entry, nil
}

// AcceptDelete removes the value PendingDelete[i] points at. Other queued
// deletes of the same value are dropped and those above it shift down so
// they keep pointing at the value they were proposed for.
func (f *EditableField[T]) AcceptDelete(i int) (PendingDelete, error) {
	if i < 0 || i >= len(f.PendingDelete) {
		return PendingDelete{}, fmt.Errorf("pending delete %d of %d: %w", i, len(f.PendingDelete), ErrInvalidIndex)
	}
	entry := f.PendingDelete[i]
	j := entry.Index
	if j < 0 || j >= len(f.Current) {
		return PendingDelete{}, fmt.Errorf("current index %d of %d: %w", j, len(f.Current), ErrInvalidIndex)
	}

	current := make([]T, 0, len(f.Current)-1)
	current = append(current, f.Current[:j]...)
	f.Current = append(current, f.Current[j+1:]...)

	remaining := make([]PendingDelete, 0, len(f.PendingDelete)-1)
	for k, other := range f.PendingDelete {
		if k == i || other.Index == j {
			continue
		}
		if other.Index > j {
			other.Index--
		}
		remaining = append(remaining, other)
	}
	f.PendingDelete = remaining
	return entry, nil
}

// RejectAdd drops PendingAdd[i].
func (f *EditableField[T]) RejectAdd(i int) (PendingAdd[T], error) {
	return f.takeAdd(i)
}

// RejectDelete drops PendingDelete[i].
func (f *EditableField[T]) RejectDelete(i int) (PendingDelete, error) {
	if i < 0 || i >= len(f.PendingDelete) {
		return PendingDelete{}, fmt.Errorf("pending delete %d of %d: %w", i, len(f.PendingDelete), ErrInvalidIndex)
	}
	entry := f.PendingDelete[i]
	f.PendingDelete = append(f.PendingDelete[:i:i], f.PendingDelete[i+1:]...)
	return entry, nil
}

func (f *EditableField[T]) takeAdd(i int) (PendingAdd[T], error) {
	if i < 0 || i >= len(f.PendingAdd) {
		return PendingAdd[T]{}, fmt.Errorf("pending add %d of %d: %w", i, len(f.PendingAdd), ErrInvalidIndex)
	}
	entry := f.PendingAdd[i]
	f.PendingAdd = append(f.PendingAdd[:i:i], f.PendingAdd[i+1:]...)
	return entry, nil
}

// Resolution describes a proposal that left its queue.
type Resolution struct {
	Kind     ProposalKind `json:"kind"`
	Accepted bool         `json:"accepted"`
	By       string       `json:"by"`
	Value    interface{}  `json:"value,omitempty"`
}

// Editable is the type-erased view of an EditableField used by the record
// services, which only see field names and untyped JSON values.
type Editable interface {
	Singular() bool
	ProposeAdd(by string, raw interface{}, at time.Time) error
	ProposeAppend(by string, raw interface{}, at time.Time) error
	ProposeDelete(by string, index int, at time.Time) error
	Resolve(kind ProposalKind, queueIndex int, accept bool) (Resolution, error)
	Bootstrap(raw interface{}) error
	Pending() int
}

type binding[T any] struct {
	field    *EditableField[T]
	singular bool
}

// Bind exposes field through the Editable interface.
func Bind[T any](field *EditableField[T], singular bool) Editable {
	return binding[T]{field: field, singular: singular}
}

func (b binding[T]) Singular() bool { return b.singular }

func (b binding[T]) Pending() int {
	return len(b.field.PendingAdd) + len(b.field.PendingDelete)
}

func (b binding[T]) ProposeAdd(by string, raw interface{}, at time.Time) error {
	value, err := decodeValue[T](raw)
	if err != nil {
		return err
	}
	b.field.ProposeAdd(by, value, at)
	return nil
}

// ProposeAppend queues a new value. A singular field only takes one while it
// is still empty; replacing its value goes through ProposeAdd as an edit.
func (b binding[T]) ProposeAppend(by string, raw interface{}, at time.Time) error {
	if b.singular && len(b.field.Current) > 0 {
		return fmt.Errorf("append to a singular field: %w", ErrFieldInitialized)
	}
	return b.ProposeAdd(by, raw, at)
}

func (b binding[T]) ProposeDelete(by string, index int, at time.Time) error {
	return b.field.ProposeDelete(by, index, at)
}

func (b binding[T]) Resolve(kind ProposalKind, queueIndex int, accept bool) (Resolution, error) {
	res := Resolution{Kind: kind, Accepted: accept}
	switch kind {
	case ProposalDelete:
		if !accept {
			entry, err := b.field.RejectDelete(queueIndex)
			if err != nil {
				return res, err
			}
			res.By = entry.By
			return res, nil
		}
		j, err := b.deleteTarget(queueIndex)
		if err != nil {
			return res, err
		}
		removed := b.field.Current[j]
		entry, err := b.field.AcceptDelete(queueIndex)
		if err != nil {
			return res, err
		}
		res.By = entry.By
		res.Value = removed
		return res, nil
	case ProposalAdd, ProposalEdit:
		var (
			entry PendingAdd[T]
			err   error
		)
		switch {
		case kind == ProposalEdit && !b.singular:
			return res, fmt.Errorf("replace on a list field: %w", ErrUnsupportedOp)
		case !accept:
			entry, err = b.field.RejectAdd(queueIndex)
		case kind == ProposalEdit:
			entry, err = b.field.AcceptReplace(queueIndex)
		case b.singular && len(b.field.Current) > 0:
			return res, fmt.Errorf("append to a singular field: %w", ErrUnsupportedOp)
		default:
			entry, err = b.field.AcceptAdd(queueIndex)
		}
		if err != nil {
			return res, err
		}
		res.By = entry.By
		res.Value = entry.Value
		return res, nil
	default:
		return res, fmt.Errorf("proposal kind %q: %w", kind, ErrUnsupportedOp)
	}
}

func (b binding[T]) deleteTarget(queueIndex int) (int, error) {
	if queueIndex < 0 || queueIndex >= len(b.field.PendingDelete) {
		return 0, fmt.Errorf("pending delete %d of %d: %w", queueIndex, len(b.field.PendingDelete), ErrInvalidIndex)
	}
	j := b.field.PendingDelete[queueIndex].Index
	if j < 0 || j >= len(b.field.Current) {
		return 0, fmt.Errorf("current index %d of %d: %w", j, len(b.field.Current), ErrInvalidIndex)
	}
	return j, nil
}

// Bootstrap fills Current of an untouched field when a record is created.
// Singular fields take one value, list fields take a list. A nil value leaves
// the field empty.
func (b binding[T]) Bootstrap(raw interface{}) error {
	if raw == nil {
		return nil
	}
	if len(b.field.Current) > 0 || b.Pending() > 0 {
		return ErrFieldInitialized
	}
	if b.singular {
		if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
			return nil
		}
		value, err := decodeValue[T](raw)
		if err != nil {
			return err
		}
		b.field.Current = []T{value}
		return nil
	}

	var items []interface{}
	if typed, ok := raw.([]T); ok {
		for _, item := range typed {
			items = append(items, item)
		}
	} else if err := mapstructure.Decode(raw, &items); err != nil {
		return fmt.Errorf("%w: expected a list", ErrInvalidValue)
	}
	values := make([]T, 0, len(items))
	for _, item := range items {
		value, err := decodeValue[T](item)
		if err != nil {
			return err
		}
		values = append(values, value)
	}
	b.field.Current = values
	return nil
}

type validatable interface {
	Validate() error
}

// decodeValue converts an untyped JSON value into T using the json tags of
// struct types, rejecting unknown keys and blank strings.
func decodeValue[T any](raw interface{}) (T, error) {
	var out T
	if typed, ok := raw.(T); ok {
		out = typed
	} else {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:     "json",
			ErrorUnused: true,
			Result:      &out,
		})
		if err != nil {
			return out, err
		}
		if raw == nil {
			return out, fmt.Errorf("%w: value is required", ErrInvalidValue)
		}
		if err := dec.Decode(raw); err != nil {
			return out, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
	}

	if s, ok := any(out).(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return out, fmt.Errorf("%w: value must not be blank", ErrInvalidValue)
		}
		out = any(s).(T)
	}
	if v, ok := any(&out).(validatable); ok {
		if err := v.Validate(); err != nil {
			return out, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
	}
	return out, nil
}
