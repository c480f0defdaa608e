package importer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskstats/internal/schema"
	"taskstats/internal/storage"
	"taskstats/internal/storage/sqlite"
	"taskstats/internal/transformer/builtin"
)

const header = "employee_id,employee_name,department,task_id,task_name,hours_spent,deadline,status\n"

/*
Package-level test helpers (TB-aware)
*/

func newRepo(tb testing.TB) storage.Repository {
	tb.Helper()
	r, err := sqlite.NewRepository(context.Background(), storage.Config{DSN: ":memory:"})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(r.Close)
	if err := r.EnsureSchema(context.Background()); err != nil {
		tb.Fatalf("EnsureSchema: %v", err)
	}
	return r
}

func csvOf(rows ...string) *strings.Reader {
	return strings.NewReader(header + strings.Join(rows, "\n") + "\n")
}

func count(tb testing.TB, r storage.Repository) int {
	tb.Helper()
	all, err := r.ListTasks(context.Background())
	require.NoError(tb, err)
	return len(all)
}

// failingWriter fails every insert.
type failingWriter struct{ calls int }

func (f *failingWriter) InsertTasks(context.Context, []schema.TaskRecord) (int64, error) {
	f.calls++
	return 0, errors.New("disk full")
}

func TestImport_CleanBatch(t *testing.T) {
	repo := newRepo(t)
	res, err := New(repo).Import(context.Background(), csvOf(
		"1,Alice,Engineering,10,Design,5,2030-01-01,Pending",
		"2,Bob,HR,11,Hiring,3,2030-02-01,completed",
	))
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, int64(2), res.Inserted)
	assert.NotEmpty(t, res.ID)
	assert.Len(t, res.Fingerprint, 16)

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","inserted":2}`, string(body))

	all, err := repo.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, schema.StatusPending, all[0].Status)
	assert.Equal(t, schema.DepartmentHR, all[1].Department)
}

// TestImport_ReimportInsertsNothing verifies that an identical second upload
// succeeds and adds no rows.
func TestImport_ReimportInsertsNothing(t *testing.T) {
	repo := newRepo(t)
	im := New(repo)
	data := []string{
		"1,Alice,engineering,10,Design,5,2030-01-01,pending",
		"2,Bob,hr,11,Hiring,3,2030-02-01,completed",
	}

	first, err := im.Import(context.Background(), csvOf(data...))
	require.NoError(t, err)
	second, err := im.Import(context.Background(), csvOf(data...))
	require.NoError(t, err)

	assert.False(t, second.Failed())
	assert.Zero(t, second.Inserted)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, count(t, repo))
}

func TestImport_DuplicateEmployeeIDRejectsBatch(t *testing.T) {
	repo := newRepo(t)
	res, err := New(repo).Import(context.Background(), csvOf(
		"1,Alice,engineering,10,Design,5,2030-01-01,pending",
		"1,Bob,engineering,11,Review,2,2030-01-01,pending",
	))
	require.NoError(t, err)
	require.True(t, res.Failed())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Equal(t, "Duplicate employee_id 1", res.Errors[0].Message)
	assert.Zero(t, res.Inserted)
	assert.Zero(t, count(t, repo))
}

// TestImport_OneBadRowBlocksAll verifies all-or-nothing: a single invalid
// row leaves storage empty and every problem is reported.
func TestImport_OneBadRowBlocksAll(t *testing.T) {
	repo := newRepo(t)
	res, err := New(repo).Import(context.Background(), csvOf(
		"1,Alice,engineering,10,Design,5,2030-01-01,pending",
		"2,Bob,sales,11,Hiring,x,2030-02-30,DONE",
		"3,Cara,hr,12,Audit,1,2030-03-01,completed",
	))
	require.NoError(t, err)
	require.True(t, res.Failed())
	require.Len(t, res.Errors, 1)

	e := res.Errors[0]
	assert.Equal(t, 2, e.Row)
	assert.Equal(t, []string{`"sales" is not a valid choice.`}, e.Fields["department"])
	assert.Equal(t, []string{builtin.MsgInvalidInt}, e.Fields["hours_spent"])
	assert.Equal(t, []string{builtin.MsgInvalidDate}, e.Fields["deadline"])
	assert.Equal(t, []string{`"done" is not a valid choice.`}, e.Fields["status"])
	assert.Equal(t, "done", e.Data["status"], "data carries lowercased values")
	assert.Zero(t, count(t, repo))
}

// TestImport_MultipleDuplicateReasons verifies each reason is its own entry
// and the first occurrence never appears in errors.
func TestImport_MultipleDuplicateReasons(t *testing.T) {
	repo := newRepo(t)
	res, err := New(repo).Import(context.Background(), csvOf(
		"1,Alice,engineering,10,Design,5,2030-01-01,pending",
		"1,Alice,engineering,10,Design,5,2030-01-01,pending",
	))
	require.NoError(t, err)
	require.Len(t, res.Errors, 3)
	for _, e := range res.Errors {
		assert.Equal(t, 2, e.Row)
	}
	assert.Equal(t, "Duplicate employee_id 1", res.Errors[0].Message)
	assert.Equal(t, "Duplicate employee_name Alice", res.Errors[1].Message)
	assert.Equal(t, "Duplicate task_id for employee 1", res.Errors[2].Message)
}

func TestImport_MissingChoiceColumns(t *testing.T) {
	repo := newRepo(t)
	in := strings.NewReader("employee_id,employee_name,task_id,task_name,hours_spent,deadline\n1,Alice,10,Design,5,2030-01-01\n")
	res, err := New(repo).Import(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, []string{`"" is not a valid choice.`}, res.Errors[0].Fields["status"])
	assert.Equal(t, []string{`"" is not a valid choice.`}, res.Errors[0].Fields["department"])
}

func TestImport_ErrorJSONShape(t *testing.T) {
	res, err := New(&failingWriter{}).Import(context.Background(), csvOf(
		"1,Alice,engineering,10,Design,5,2030-01-01,pending",
		"2,Alice,engineering,11,Design,5,2030-01-01,pending",
		"0,Cara,engineering,12,Design,5,2030-01-01,pending",
	))
	require.NoError(t, err)

	body, err := json.Marshal(res)
	require.NoError(t, err)
	var got struct {
		Status string `json:"status"`
		Errors []struct {
			Row    int               `json:"row"`
			Errors json.RawMessage   `json:"errors"`
			Data   map[string]string `json:"data"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "failed", got.Status)
	require.Len(t, got.Errors, 2)
	assert.JSONEq(t, `"Duplicate employee_name Alice"`, string(got.Errors[0].Errors))
	assert.JSONEq(t, `{"employee_id":["Ensure this value is greater than or equal to 1."]}`, string(got.Errors[1].Errors))
	assert.Equal(t, "Cara", got.Errors[1].Data["employee_name"])
}

func TestImport_EmptyFileSucceeds(t *testing.T) {
	repo := newRepo(t)
	res, err := New(repo).Import(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.Zero(t, res.Rows)
	assert.Zero(t, res.Inserted)
}

func TestImport_InvalidUTF8IsError(t *testing.T) {
	fw := &failingWriter{}
	_, err := New(fw).Import(context.Background(), strings.NewReader(header+"1,Al\xffice,engineering,10,D,5,2030-01-01,pending\n"))
	require.Error(t, err)
	assert.Zero(t, fw.calls)
}

func TestImport_StorageErrorPropagates(t *testing.T) {
	fw := &failingWriter{}
	_, err := New(fw).Import(context.Background(), csvOf("1,Alice,engineering,10,Design,5,2030-01-01,pending"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, fw.calls)
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	repo := newRepo(t)
	res, err := New(repo, WithDryRun(true)).Import(context.Background(), csvOf(
		"1,Alice,engineering,10,Design,5,2030-01-01,pending",
	))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Valid)
	assert.Zero(t, count(t, repo))

	body, _ := json.Marshal(res)
	assert.JSONEq(t, `{"status":"success","valid":1,"dry_run":true}`, string(body))
}
