package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

type receipt struct {
	Ref string `json:"ref"`
}

type testTask = task.StreamTask[record, receipt]

func TestNewOutcome(t *testing.T) {
	ok := task.New[record, receipt]("record", "u-a", "u", record{ID: "a"})
	ok.SetResponse(receipt{Ref: "r-1"})

	failed := task.New[record, receipt]("record", "u-b", "u", record{ID: "b"})
	failed.Error("record", "create", "b", "", errors.New("boom"), "boom", "failed to create")

	o := NewOutcome(worker.Result[*testTask]{Task: ok})
	assert.Equal(t, Outcome{TaskID: "u-a", UnitOfWorkID: "u", State: "succeeded", Response: receipt{Ref: "r-1"}}, o)

	o = NewOutcome(worker.Result[*testTask]{Task: failed, Err: errors.New("boom")})
	assert.Equal(t, "failed", o.State)
	assert.Nil(t, o.Response)
	assert.Equal(t, "boom", o.Error)
}

func TestOutcomeWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewOutcomeWriter(&buf)
	emit := Emit[record, receipt](w)

	ok := task.New[record, receipt]("record", "u-a", "u", record{ID: "a"})
	ok.SetResponse(receipt{Ref: "r-1"})
	emit(worker.Result[*testTask]{Task: ok})

	pending := task.New[record, receipt]("record", "u-b", "u", record{ID: "b"})
	emit(worker.Result[*testTask]{Task: pending, Err: worker.ErrTaskNotFinished})

	require.NoError(t, w.Err())
	total, failed := w.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, failed)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "u-a", first["taskId"])
	assert.Equal(t, map[string]any{"ref": "r-1"}, first["response"])
	assert.NotContains(t, first, "error")

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "pending", second["state"])
	assert.NotEmpty(t, second["error"])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestOutcomeWriter_KeepsCountingAfterError(t *testing.T) {
	w := NewOutcomeWriter(failingWriter{})
	w.Write(Outcome{TaskID: "a"})
	w.Write(Outcome{TaskID: "b", Error: "x"})

	assert.EqualError(t, w.Err(), "disk full")
	total, failed := w.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, failed)
}

func TestOutcomeWriter_Invalid(t *testing.T) {
	var buf bytes.Buffer
	w := NewOutcomeWriter(&buf)

	input := "{\"id\":\"a\"}\n{broken\n"
	src := NewSource[record](strings.NewReader(input), SkipInvalid(w.Invalid))
	for range src.All() {
	}
	require.NoError(t, src.Err())

	total, failed := w.Counts()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, failed)

	var got map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got))
	assert.Equal(t, 2.0, got["line"])
	assert.Equal(t, "failed", got["state"])
	assert.Contains(t, got["error"], "invalid record")
	assert.NotContains(t, got, "taskId")
}
