package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *JobStore) {
	t.Helper()
	store, _ := newTestJobStore(t, 5, 3)
	srv := httptest.NewServer(NewServer(context.Background(), store, testLogger()).Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url, body string, out any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestJobAPILifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	var job Job
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/jobs", `{"name":"leads","urls":["a.com","quiet.com"]}`, &job)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "leads", job.Name)
	assert.Equal(t, JobPending, job.Status)
	assert.Equal(t, 2, job.TotalURLs)

	var jobs []Job
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/jobs", "", &jobs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, jobs, 1)

	var summary BatchSummary
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/jobs/process-batch", "", &summary)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, summary.Processed)
	assert.Equal(t, JobCompleted, summary.Results[0].Status)

	var got Job
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+job.ID, "", &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, JobCompleted, got.Status)
	assert.Equal(t, 1, got.EmailsFound)

	var rows []ResultRow
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+job.ID+"/results", "", &rows)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []ResultRow{{Site: "a.com", Email: "info@a.com"}, {Site: "quiet.com"}}, rows)

	csvResp, err := http.Get(srv.URL + "/api/jobs/" + job.ID + "/results?format=csv")
	require.NoError(t, err)
	body, err := io.ReadAll(csvResp.Body)
	csvResp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "text/csv", csvResp.Header.Get("Content-Type"))
	assert.Equal(t, "Website,Email\na.com,info@a.com\nquiet.com,\n", string(body))

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/jobs/"+job.ID+"/process", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/jobs/"+job.ID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+job.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobAPIRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/jobs", `{"name":"none","urls":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/jobs", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/jobs/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobAPICreateFromSheetURL(t *testing.T) {
	sheet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Company,Website\nAcme,acme.com\nBeta,\nGamma,gamma.io\n"))
	}))
	defer sheet.Close()
	srv, _ := newTestServer(t)

	var job Job
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/jobs",
		`{"name":"sheet","sheet_url":"`+sheet.URL+`/export.csv","column":"website"}`, &job)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 3, job.TotalURLs)
}

func TestProcessBatchWithNoJobs(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]any
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/jobs/process-batch", "", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "No jobs to process", body["message"])
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	store, _ := newTestJobStore(t, 5, 3)
	s := NewServer(context.Background(), store, testLogger())
	assert.Error(t, s.StartScheduler("every now and then"))
	assert.NoError(t, s.StartScheduler(""))
}
