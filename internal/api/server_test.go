package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskstats/internal/schema"
	"taskstats/internal/storage"
	"taskstats/internal/storage/sqlite"
)

const header = "employee_id,employee_name,department,task_id,task_name,hours_spent,deadline,status\n"

// fixture is loaded by seeded servers. As of 2025-01-15 Alice and Dave are
// late; Bob and Carol are completed.
var fixture = []string{
	"1,Alice,Engineering,10,Design,5,2025-01-10,Pending",
	"2,Bob,HR,11,Hiring,8,2025-01-20,Completed",
	"3,Carol,Engineering,12,Build,8,2025-01-01,Completed",
	"4,Dave,Marketing,13,Ads,3,2025-01-14,In Progress",
}

func fixedNow() time.Time { return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC) }

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

func newHandler(tb testing.TB, cfg Config) (http.Handler, storage.Repository) {
	tb.Helper()
	repo := newRepo(tb)
	if cfg.Now == nil {
		cfg.Now = fixedNow
	}
	return NewServer(repo, cfg).Handler(), repo
}

func seeded(tb testing.TB) (http.Handler, storage.Repository) {
	tb.Helper()
	h, repo := newHandler(tb, Config{})
	w := upload(tb, h, header+strings.Join(fixture, "\n")+"\n")
	if w.Code != http.StatusCreated {
		tb.Fatalf("seed upload: %d %s", w.Code, w.Body.String())
	}
	return h, repo
}

func upload(tb testing.TB, h http.Handler, csv string) *httptest.ResponseRecorder {
	tb.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "tasks.csv")
	require.NoError(tb, err)
	_, _ = io.WriteString(fw, csv)
	require.NoError(tb, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/employee/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(tb testing.TB, w *httptest.ResponseRecorder, v any) {
	tb.Helper()
	require.Equal(tb, "application/json", w.Header().Get("Content-Type"))
	require.NoError(tb, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealthz(t *testing.T) {
	h, _ := newHandler(t, Config{})
	w := do(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestImport_Success(t *testing.T) {
	h, repo := newHandler(t, Config{})
	w := upload(t, h, header+"1,Alice,Engineering,10,Design,5,2030-01-01,Pending\n2,Bob,HR,11,Hiring,8,2030-01-02,Completed\n")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"success","inserted":2}`, w.Body.String())

	all, err := repo.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImport_DuplicateRejectsBatch(t *testing.T) {
	h, repo := newHandler(t, Config{})
	w := upload(t, h, header+"1,Alice,Engineering,10,Design,5,2030-01-01,Pending\n1,Bob,HR,11,Hiring,8,2030-01-02,Completed\n")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Status string `json:"status"`
		Errors []struct {
			Row    int             `json:"row"`
			Errors json.RawMessage `json:"errors"`
			Data   map[string]string
		} `json:"errors"`
	}
	decode(t, w, &body)
	assert.Equal(t, "failed", body.Status)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, 2, body.Errors[0].Row)
	assert.JSONEq(t, `"Duplicate employee_id 1"`, string(body.Errors[0].Errors))
	assert.Equal(t, "hr", body.Errors[0].Data["department"])

	all, err := repo.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImport_NoFile(t *testing.T) {
	h, _ := newHandler(t, Config{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/employee", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, w.Body.String())

	w = do(h, http.MethodPost, "/employee/", `{"file":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, w.Body.String())
}

func TestImport_TooLarge(t *testing.T) {
	h, _ := newHandler(t, Config{MaxUploadBytes: 64})
	w := upload(t, h, header+strings.Repeat("1,Alice,Engineering,10,Design,5,2030-01-01,Pending\n", 20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestImport_BadEncodingIs500(t *testing.T) {
	h, _ := newHandler(t, Config{})
	w := upload(t, h, header+"1,Al\xffice,Engineering,10,Design,5,2030-01-01,Pending\n")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	decode(t, w, &body)
	assert.NotEmpty(t, body["error"])
}

func TestImport_RateLimited(t *testing.T) {
	h, _ := newHandler(t, Config{UploadRate: 1, UploadBurst: 1})
	csv := header + "1,Alice,Engineering,10,Design,5,2030-01-01,Pending\n"

	assert.Equal(t, http.StatusCreated, upload(t, h, csv).Code)
	w := upload(t, h, csv)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestReports_JSON(t *testing.T) {
	h, _ := seeded(t)

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"department contribution", "/employee/department-contribute-hour",
			`{"result":[{"department":"engineering","total_hours":13},{"department":"hr","total_hours":8},{"department":"marketing","total_hours":3}]}`},
		{"workload default limit", "/employee/workload-employee",
			`{"result":[{"employee_name":"Bob","total_hours":8,"pending_tasks":0},{"employee_name":"Carol","total_hours":8,"pending_tasks":0},{"employee_name":"Alice","total_hours":5,"pending_tasks":1}]}`},
		{"workload limit", "/employee/workload-employee?limit=1",
			`{"result":[{"employee_name":"Bob","total_hours":8,"pending_tasks":0}]}`},
		{"workload zero limit", "/employee/workload-employee?limit=0", `{"result":[]}`},
		{"completion", "/employee/employee-task-completion",
			`{"result":[{"department":"engineering","total_tasks":2,"completed_tasks":1,"completion_percentage":50},{"department":"hr","total_tasks":1,"completed_tasks":1,"completion_percentage":100},{"department":"marketing","total_tasks":1,"completed_tasks":0,"completion_percentage":0}]}`},
		{"completed task hours", "/employee/task-complete-hour",
			`{"result":[{"employee_id":2,"employee_name":"Bob","task_id":11,"task_name":"Hiring","avg_hours":8},{"employee_id":3,"employee_name":"Carol","task_id":12,"task_name":"Build","avg_hours":8}]}`},
		{"chart flag ignored", "/employee/task-complete-hour?chart=true",
			`{"result":[{"employee_id":2,"employee_name":"Bob","task_id":11,"task_name":"Hiring","avg_hours":8},{"employee_id":3,"employee_name":"Carol","task_id":12,"task_name":"Build","avg_hours":8}]}`},
		{"trailing slash", "/employee/department-contribute-hour/?chart=false",
			`{"result":[{"department":"engineering","total_hours":13},{"department":"hr","total_hours":8},{"department":"marketing","total_hours":3}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestReports_DelayTask(t *testing.T) {
	h, _ := seeded(t)
	w := do(h, http.MethodGet, "/employee/delay-task", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Result []schema.TaskRecord `json:"result"`
	}
	decode(t, w, &body)
	require.Len(t, body.Result, 2)
	assert.Equal(t, "Alice", body.Result[0].EmployeeName)
	assert.Equal(t, "Dave", body.Result[1].EmployeeName)
	assert.Equal(t, "in progress", body.Result[1].Status)
	assert.Equal(t, "2025-01-14", body.Result[1].Deadline.String())
}

func TestReports_Charts(t *testing.T) {
	h, _ := seeded(t)
	for _, target := range []string{
		"/employee/department-contribute-hour?chart=true",
		"/employee/workload-employee?chart=TRUE&limit=2",
		"/employee/employee-task-completion?chart=True",
		"/employee/delay-task?chart=true",
	} {
		w := do(h, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, w.Code, target)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"), target)
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")), target)
	}
}

func TestReports_DelayChartSingleEmployee(t *testing.T) {
	h, _ := newHandler(t, Config{})
	w := upload(t, h, header+
		"1,Alice,Engineering,10,Design,5,2020-01-01,pending\n"+
		"2,Bob,HR,11,Hiring,8,2030-01-01,pending\n")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(h, http.MethodGet, "/employee/delay-task?chart=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestReports_ChartOnEmptyStore(t *testing.T) {
	h, _ := newHandler(t, Config{})
	w := do(h, http.MethodGet, "/employee/employee-task-completion?chart=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestReports_BadLimit(t *testing.T) {
	h, _ := seeded(t)
	for _, q := range []string{"abc", "-1", "2.5"} {
		w := do(h, http.MethodGet, "/employee/workload-employee?limit="+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

// brokenRepo fails every read.
type brokenRepo struct{ storage.Repository }

func (brokenRepo) ListTasks(context.Context) ([]schema.TaskRecord, error) {
	return nil, errors.New("connection reset")
}

func TestReports_StorageErrorIs500(t *testing.T) {
	h := NewServer(brokenRepo{}, Config{}).Handler()
	for _, target := range []string{
		"/employee/",
		"/employee/department-contribute-hour",
		"/employee/workload-employee",
		"/employee/employee-task-completion",
		"/employee/delay-task?chart=true",
		"/employee/task-complete-hour",
	} {
		w := do(h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code, target)
		assert.Contains(t, w.Body.String(), "connection reset", target)
	}
}

func TestCORS(t *testing.T) {
	h, _ := newHandler(t, Config{})
	req := httptest.NewRequest(http.MethodGet, "/employee/", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
