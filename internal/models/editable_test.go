package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var proposedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestProposeDeleteOutOfRange(t *testing.T) {
	field := EditableField[string]{Current: []string{"a", "b", "c"}}

	err := field.ProposeDelete("u1", 5, proposedAt)
	require.ErrorIs(t, err, ErrInvalidIndex)
	assert.Empty(t, field.PendingDelete)

	require.ErrorIs(t, field.ProposeDelete("u1", -1, proposedAt), ErrInvalidIndex)
	require.NoError(t, field.ProposeDelete("u1", 2, proposedAt))
	assert.Len(t, field.PendingDelete, 1)
}

func TestAcceptAddAppendsValue(t *testing.T) {
	field := EditableField[string]{Current: []string{"a"}}
	field.ProposeAdd("u1", "b", proposedAt)
	field.ProposeAdd("u2", "c", proposedAt)

	entry, err := field.AcceptAdd(1)
	require.NoError(t, err)
	assert.Equal(t, "u2", entry.By)
	assert.Equal(t, []string{"a", "c"}, field.Current)
	require.Len(t, field.PendingAdd, 1)
	assert.Equal(t, "b", field.PendingAdd[0].Value)

	_, err = field.AcceptAdd(3)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestAcceptDeleteRemapsPendingDeletes(t *testing.T) {
	field := EditableField[string]{Current: []string{"a", "b", "c", "d"}}
	require.NoError(t, field.ProposeDelete("u1", 1, proposedAt))
	require.NoError(t, field.ProposeDelete("u2", 3, proposedAt))
	require.NoError(t, field.ProposeDelete("u3", 1, proposedAt))
	require.NoError(t, field.ProposeDelete("u4", 0, proposedAt))

	entry, err := field.AcceptDelete(0)
	require.NoError(t, err)
	assert.Equal(t, "u1", entry.By)
	assert.Equal(t, []string{"a", "c", "d"}, field.Current)

	require.Len(t, field.PendingDelete, 2)
	assert.Equal(t, "u2", field.PendingDelete[0].By)
	assert.Equal(t, 2, field.PendingDelete[0].Index)
	assert.Equal(t, "d", field.Current[field.PendingDelete[0].Index])
	assert.Equal(t, "u4", field.PendingDelete[1].By)
	assert.Equal(t, 0, field.PendingDelete[1].Index)
}

func TestAcceptDeleteStaleIndexLeavesFieldUntouched(t *testing.T) {
	field := EditableField[string]{
		Current:       []string{"a"},
		PendingDelete: []PendingDelete{{By: "u1", Index: 4}},
	}

	_, err := field.AcceptDelete(0)
	require.ErrorIs(t, err, ErrInvalidIndex)
	assert.Equal(t, []string{"a"}, field.Current)
	assert.Len(t, field.PendingDelete, 1)
}

func TestAcceptReplaceClearsDeletes(t *testing.T) {
	field := EditableField[string]{Current: []string{"Old title"}}
	require.NoError(t, field.ProposeDelete("u1", 0, proposedAt))
	field.ProposeAdd("u2", "New title", proposedAt)

	_, err := field.AcceptReplace(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"New title"}, field.Current)
	assert.Empty(t, field.PendingAdd)
	assert.Empty(t, field.PendingDelete)
}

func TestRejectLeavesCurrentUnchanged(t *testing.T) {
	field := EditableField[string]{Current: []string{"a", "b"}}
	field.ProposeAdd("u1", "c", proposedAt)
	require.NoError(t, field.ProposeDelete("u2", 0, proposedAt))

	_, err := field.RejectAdd(0)
	require.NoError(t, err)
	_, err = field.RejectDelete(0)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, field.Current)
	assert.Empty(t, field.PendingAdd)
	assert.Empty(t, field.PendingDelete)
}

func TestMarshalEmitsEmptyArrays(t *testing.T) {
	data, err := json.Marshal(EditableField[string]{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cur":[],"add":[],"del":[]}`, string(data))
}

func TestMarshalPendingEntries(t *testing.T) {
	field := EditableField[string]{Current: []string{"a"}}
	field.ProposeAdd("u1", "b", proposedAt)
	require.NoError(t, field.ProposeDelete("u2", 0, proposedAt))

	data, err := json.Marshal(field)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"cur": ["a"],
		"add": [{"by": "u1", "value": "b", "proposedAt": "2024-03-01T09:00:00Z"}],
		"del": [{"by": "u2", "index": 0, "proposedAt": "2024-03-01T09:00:00Z"}]
	}`, string(data))
}

func TestBindingDecodesUntypedValues(t *testing.T) {
	doc := &SubjectDocument{}
	modules, ok := doc.Field("modules")
	require.True(t, ok)

	err := modules.ProposeAdd("u1", map[string]interface{}{"title": " Graphs ", "topics": []interface{}{"BFS", "DFS"}}, proposedAt)
	require.NoError(t, err)
	require.Len(t, doc.Modules.PendingAdd, 1)
	assert.Equal(t, Module{Title: "Graphs", Topics: []string{"BFS", "DFS"}}, doc.Modules.PendingAdd[0].Value)

	err = modules.ProposeAdd("u1", map[string]interface{}{"title": "x", "unknown": 1}, proposedAt)
	assert.ErrorIs(t, err, ErrInvalidValue)
	err = modules.ProposeAdd("u1", map[string]interface{}{"topics": []interface{}{"a"}}, proposedAt)
	assert.ErrorIs(t, err, ErrInvalidValue)

	title, _ := doc.Field("title")
	assert.ErrorIs(t, title.ProposeAdd("u1", 42.0, proposedAt), ErrInvalidValue)
	assert.ErrorIs(t, title.ProposeAdd("u1", "   ", proposedAt), ErrInvalidValue)
}

func TestBindingResolve(t *testing.T) {
	doc := &CourseDocument{}
	title, _ := doc.Field("title")
	objectives, _ := doc.Field("objectives")
	require.True(t, title.Singular())
	require.False(t, objectives.Singular())

	require.NoError(t, title.Bootstrap("Algorithms"))
	require.NoError(t, title.ProposeAdd("u2", "Advanced Algorithms", proposedAt))

	_, err := title.Resolve(ProposalAdd, 0, true)
	require.ErrorIs(t, err, ErrUnsupportedOp)

	res, err := title.Resolve(ProposalEdit, 0, true)
	require.NoError(t, err)
	assert.Equal(t, "u2", res.By)
	assert.Equal(t, "Advanced Algorithms", res.Value)
	assert.Equal(t, []string{"Advanced Algorithms"}, doc.Title.Current)
	assert.Equal(t, "Advanced Algorithms", doc.Label())

	require.NoError(t, objectives.Bootstrap([]interface{}{"one", "two"}))
	require.NoError(t, objectives.ProposeAdd("u3", "three", proposedAt))
	_, err = objectives.Resolve(ProposalEdit, 0, true)
	require.ErrorIs(t, err, ErrUnsupportedOp)

	_, err = objectives.Resolve(ProposalAdd, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, doc.Objectives.Current)

	require.NoError(t, objectives.ProposeDelete("u4", 1, proposedAt))
	res, err = objectives.Resolve(ProposalDelete, 0, true)
	require.NoError(t, err)
	assert.Equal(t, "two", res.Value)
	assert.Equal(t, "u4", res.By)
	assert.Equal(t, []string{"one", "three"}, doc.Objectives.Current)
	assert.Equal(t, 0, objectives.Pending())

	_, err = objectives.Resolve(ProposalDelete, 0, false)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestProposeAppend(t *testing.T) {
	empty := &CourseDocument{}
	emptyTitle, _ := empty.Field("title")
	require.NoError(t, emptyTitle.ProposeAppend("u1", "Algorithms", proposedAt))
	require.Len(t, empty.Title.PendingAdd, 1)

	doc := &CourseDocument{}
	title, _ := doc.Field("title")
	objectives, _ := doc.Field("objectives")

	require.NoError(t, title.Bootstrap("Algorithms"))
	assert.ErrorIs(t, title.ProposeAppend("u1", "Graphs", proposedAt), ErrFieldInitialized)
	assert.Empty(t, doc.Title.PendingAdd)

	require.NoError(t, objectives.Bootstrap([]interface{}{"one"}))
	require.NoError(t, objectives.ProposeAppend("u2", "two", proposedAt))
	assert.Len(t, doc.Objectives.PendingAdd, 1)
}

func TestBootstrap(t *testing.T) {
	doc := &CourseDocument{}
	outcomes, _ := doc.Field("outcomes")
	level, _ := doc.Field("level")

	require.NoError(t, outcomes.Bootstrap([]string{"Design", "Analyse"}))
	assert.Equal(t, []string{"Design", "Analyse"}, doc.Outcomes.Current)
	assert.ErrorIs(t, outcomes.Bootstrap([]string{"again"}), ErrFieldInitialized)

	require.NoError(t, level.Bootstrap(""))
	assert.Empty(t, doc.Level.Current)
	assert.ErrorIs(t, level.Bootstrap([]string{"UG"}), ErrInvalidValue)

	program, _ := doc.Field("program")
	require.NoError(t, program.Bootstrap("B.Tech"))
	objectives, _ := doc.Field("objectives")
	assert.ErrorIs(t, objectives.Bootstrap("not a list"), ErrInvalidValue)
}

func TestRecordDocumentRoundTrip(t *testing.T) {
	record := &Record{Kind: RecordKindSubject}
	doc, err := record.Document()
	require.NoError(t, err)

	experiments, ok := doc.Field("experiments")
	require.True(t, ok)
	require.NoError(t, experiments.Bootstrap([]interface{}{map[string]interface{}{"name": "Sorting", "url": "https://lab/sort"}}))
	require.NoError(t, record.SetDocument(doc))

	decoded, err := record.Document()
	require.NoError(t, err)
	subject := decoded.(*SubjectDocument)
	assert.Equal(t, []Experiment{{Name: "Sorting", URL: "https://lab/sort"}}, subject.Experiments.Current)

	_, ok = decoded.Field("level")
	assert.False(t, ok)

	_, err = (&Record{Kind: "program"}).Document()
	assert.Error(t, err)
}

func TestAccessLevelAllows(t *testing.T) {
	assert.True(t, AccessHead.Allows(AccessEdit))
	assert.True(t, AccessEdit.Allows(AccessEdit))
	assert.False(t, AccessView.Allows(AccessEdit))
	assert.False(t, AccessLevel("owner").Allows(AccessView))
	assert.False(t, AccessLevel("owner").Valid())
}
