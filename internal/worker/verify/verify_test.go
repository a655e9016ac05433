package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ambient-sdlc/control-plane/internal/aiclient"
)

func TestExecuteHappyPathStoresVariableAndPasses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"u-1"}`))
		case "/users/u-1":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"id":"u-1","name":"x"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	worker := &Worker{Prober: NewProber(5 * time.Second)}
	suite := aiclient.TestSuite{Tests: []aiclient.Scenario{{
		Name: "create then read",
		Steps: []aiclient.Step{
			{Action: "create", Method: "POST", Endpoint: "/users", ExpectedStatus: 201, StoreVariables: map[string]string{"uid": "response.id"}},
			{Action: "read", Method: "GET", Endpoint: "/users/${uid}", ExpectedStatus: 200},
		},
	}}}

	results, anyFail := worker.execute(context.Background(), server.URL, suite)
	require.False(t, anyFail)
	require.Len(t, results, 1)
	require.Len(t, results[0].Steps, 2)
	require.Equal(t, "pass", results[0].Steps[0].Status)
	require.Equal(t, "pass", results[0].Steps[1].Status)
}

func TestExecuteStopsScenarioOnFirstFailAndSkipsRest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	worker := &Worker{Prober: NewProber(5 * time.Second)}
	suite := aiclient.TestSuite{Tests: []aiclient.Scenario{{
		Name: "fails early",
		Steps: []aiclient.Step{
			{Action: "create", Method: "POST", Endpoint: "/users", ExpectedStatus: 201},
			{Action: "read", Method: "GET", Endpoint: "/users/1", ExpectedStatus: 200},
		},
	}}}

	results, anyFail := worker.execute(context.Background(), server.URL, suite)
	require.True(t, anyFail)
	require.Equal(t, "fail", results[0].Steps[0].Status)
	require.Equal(t, "skip", results[0].Steps[1].Status)
}

func TestExecuteScenariosAreIndependent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	worker := &Worker{Prober: NewProber(5 * time.Second)}
	suite := aiclient.TestSuite{Tests: []aiclient.Scenario{
		{Name: "a", Steps: []aiclient.Step{{Action: "x", Method: "GET", Endpoint: "/a", ExpectedStatus: 500}}},
		{Name: "b", Steps: []aiclient.Step{{Action: "y", Method: "GET", Endpoint: "/b", ExpectedStatus: 200}}},
	}}

	results, anyFail := worker.execute(context.Background(), server.URL, suite)
	require.True(t, anyFail)
	require.Equal(t, "fail", results[0].Steps[0].Status)
	require.Equal(t, "pass", results[1].Steps[0].Status)
}
