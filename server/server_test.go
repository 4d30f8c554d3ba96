package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/supplychain"
	"github.com/meikuraledutech/supplychain/memory"
	"github.com/meikuraledutech/supplychain/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	app     *fiber.App
	store   *memory.MemStore
	metrics *metrics.Collector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	m := metrics.NewCollector("supplychain")
	srv := New(store, zaptest.NewLogger(t), m)
	return &fixture{app: srv.App(), store: store, metrics: m}
}

// seed stores 4 -> 3 -> 2 -> 1 with 1 as reference.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	_, err := f.store.CreateSystem(context.Background(), &supplychain.ProductSystem{
		ID:               "ps",
		ReferenceProcess: 1,
		Processes:        []supplychain.ProcessID{1, 2, 3, 4},
		Links: []supplychain.ProcessLink{
			{ProviderID: 2, ProcessID: 1, FlowID: 1},
			{ProviderID: 3, ProcessID: 2, FlowID: 1},
			{ProviderID: 4, ProcessID: 3, FlowID: 1},
		},
	})
	require.NoError(t, err)
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

type systemResponse struct {
	System supplychain.ProductSystem `json:"system"`
	Dirty  bool                      `json:"dirty"`
}

func (f *fixture) system(t *testing.T, id string) systemResponse {
	t.Helper()
	status, data := f.do(t, http.MethodGet, "/systems/"+id, "")
	require.Equal(t, http.StatusOK, status, string(data))
	var out systemResponse
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestCreateAndGetSystem(t *testing.T) {
	f := newFixture(t)

	status, data := f.do(t, http.MethodPost, "/systems",
		`{"reference_process":1,"processes":[1,2],"links":[{"provider_id":2,"process_id":1,"flow_id":5}]}`)
	require.Equal(t, http.StatusCreated, status, string(data))

	var created supplychain.ProductSystem
	require.NoError(t, json.Unmarshal(data, &created))
	require.NotEmpty(t, created.ID)

	got := f.system(t, created.ID)
	assert.Equal(t, supplychain.ProcessID(1), got.System.ReferenceProcess)
	assert.Len(t, got.System.Links, 1)
	assert.False(t, got.Dirty)
}

func TestCreateSystem_Invalid(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, http.MethodPost, "/systems", `{"reference_process":1,"processes":[2]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = f.do(t, http.MethodPost, "/systems", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetSystem_NotFound(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, http.MethodGet, "/systems/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListLinks(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	status, data := f.do(t, http.MethodGet, "/systems/ps/processes/2/links", "")
	require.Equal(t, http.StatusOK, status)
	var links []supplychain.ProcessLink
	require.NoError(t, json.Unmarshal(data, &links))
	assert.Len(t, links, 2)

	status, data = f.do(t, http.MethodGet, "/systems/ps/processes/2/links?role=consumer", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(data, &links))
	assert.Equal(t, []supplychain.ProcessLink{{ProviderID: 3, ProcessID: 2, FlowID: 1}}, links)

	status, data = f.do(t, http.MethodGet, "/systems/ps/processes/4/links?role=consumer", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(data))

	status, _ = f.do(t, http.MethodGet, "/systems/ps/processes/2/links?role=sideways", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodGet, "/systems/ps/processes/abc/links", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodGet, "/systems/ps/processes/99/links", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSupplyChain_RemoveUndoRedoSave(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	status, data := f.do(t, http.MethodGet, "/systems/ps/processes/1/supply-chain", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"removable":true}`, string(data))

	status, data = f.do(t, http.MethodDelete, "/systems/ps/processes/1/supply-chain", "")
	require.Equal(t, http.StatusOK, status, string(data))
	var removal supplychain.Removal
	require.NoError(t, json.Unmarshal(data, &removal))
	assert.ElementsMatch(t, []supplychain.ProcessID{2, 3, 4}, removal.Processes)
	assert.Len(t, removal.Links, 3)

	got := f.system(t, "ps")
	assert.Equal(t, []supplychain.ProcessID{1}, got.System.Processes)
	assert.Empty(t, got.System.Links)
	assert.True(t, got.Dirty)

	// Not saved yet.
	stored, err := f.store.GetSystem(context.Background(), "ps")
	require.NoError(t, err)
	assert.Len(t, stored.Processes, 4)

	status, _ = f.do(t, http.MethodPost, "/systems/ps/undo", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, f.system(t, "ps").System.Links, 3)

	status, _ = f.do(t, http.MethodPost, "/systems/ps/undo", "")
	assert.Equal(t, http.StatusConflict, status)

	status, _ = f.do(t, http.MethodPost, "/systems/ps/redo", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, f.system(t, "ps").System.Links)

	status, _ = f.do(t, http.MethodPost, "/systems/ps/save", "")
	require.Equal(t, http.StatusNoContent, status)
	stored, err = f.store.GetSystem(context.Background(), "ps")
	require.NoError(t, err)
	assert.Equal(t, []supplychain.ProcessID{1}, stored.Processes)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Removals))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.RemovedProcesses))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Undos))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Redos))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OpenSessions))
}

func TestSupplyChain_ExplicitSeed(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	status, data := f.do(t, http.MethodDelete, "/systems/ps/processes/2/supply-chain",
		`{"seed":[{"provider_id":3,"process_id":2,"flow_id":1}]}`)
	require.Equal(t, http.StatusOK, status, string(data))
	var removal supplychain.Removal
	require.NoError(t, json.Unmarshal(data, &removal))
	assert.ElementsMatch(t, []supplychain.ProcessID{3, 4}, removal.Processes)
}

func TestSupplyChain_Unsafe(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.CreateSystem(context.Background(), &supplychain.ProductSystem{
		ID:               "loop",
		ReferenceProcess: 1,
		Processes:        []supplychain.ProcessID{1, 2, 3},
		Links: []supplychain.ProcessLink{
			{ProviderID: 1, ProcessID: 2},
			{ProviderID: 2, ProcessID: 3},
		},
	})
	require.NoError(t, err)

	status, data := f.do(t, http.MethodGet, "/systems/loop/processes/3/supply-chain", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"removable":false}`, string(data))

	status, _ = f.do(t, http.MethodDelete, "/systems/loop/processes/3/supply-chain", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RejectedRemovals))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.Removals))
}

func TestSupplyChain_UnknownProcess(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	status, _ := f.do(t, http.MethodDelete, "/systems/ps/processes/42/supply-chain", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProcessAndLinkEdits(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	status, _ := f.do(t, http.MethodPost, "/systems/ps/processes", `{"id":5}`)
	require.Equal(t, http.StatusCreated, status)

	status, _ = f.do(t, http.MethodPost, "/systems/ps/links", `{"provider_id":5,"process_id":1,"flow_id":2}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Len(t, f.system(t, "ps").System.Links, 4)

	status, _ = f.do(t, http.MethodDelete, "/systems/ps/links", `{"provider_id":5,"process_id":1,"flow_id":2}`)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = f.do(t, http.MethodDelete, "/systems/ps/links", `{"provider_id":5,"process_id":1,"flow_id":2}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodDelete, "/systems/ps/processes/3", "")
	require.Equal(t, http.StatusNoContent, status)
	got := f.system(t, "ps").System
	assert.ElementsMatch(t, []supplychain.ProcessID{1, 2, 4, 5}, got.Processes)
	assert.Len(t, got.Links, 1)

	status, _ = f.do(t, http.MethodDelete, "/systems/ps/processes/1", "")
	assert.Equal(t, http.StatusConflict, status)
}

func TestDeleteSystemClosesSession(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.system(t, "ps")

	status, _ := f.do(t, http.MethodDelete, "/systems/ps", "")
	require.Equal(t, http.StatusNoContent, status)

	status, _ = f.do(t, http.MethodGet, "/systems/ps", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.OpenSessions))
}

func TestSchema(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	status, _ := f.do(t, http.MethodPost, "/schema", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, http.MethodDelete, "/schema", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, http.MethodGet, "/systems/ps", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/systems/missing", "")

	status, data := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), `supplychain_http_requests_total{method="GET",route="/systems/:id",status="404"} 1`)
}

// slowStore holds GetSystem of the "slow" system until release is closed.
type slowStore struct {
	*memory.MemStore
	entered chan struct{}
	release chan struct{}
}

func (s *slowStore) GetSystem(ctx context.Context, id string) (*supplychain.ProductSystem, error) {
	if id == "slow" {
		close(s.entered)
		<-s.release
	}
	return s.MemStore.GetSystem(ctx, id)
}

func TestSession_PendingLoadDoesNotBlockOtherSystems(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	for _, id := range []string{"ps", "slow"} {
		_, err := mem.CreateSystem(ctx, &supplychain.ProductSystem{
			ID:               id,
			ReferenceProcess: 1,
			Processes:        []supplychain.ProcessID{1},
		})
		require.NoError(t, err)
	}
	store := &slowStore{MemStore: mem, entered: make(chan struct{}), release: make(chan struct{})}
	srv := New(store, zaptest.NewLogger(t), metrics.NewCollector("supplychain"))

	slowDone := make(chan error, 1)
	go func() {
		_, err := srv.session(ctx, "slow")
		slowDone <- err
	}()
	<-store.entered

	done := make(chan error, 1)
	go func() {
		_, err := srv.session(ctx, "ps")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(store.release)
		t.Fatal("opening ps waited for the load of another system")
	}

	close(store.release)
	require.NoError(t, <-slowDone)

	a, err := srv.session(ctx, "slow")
	require.NoError(t, err)
	b, err := srv.session(ctx, "slow")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestSupplyChain_UnlinkedProcessReturnsEmptyLists(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	status, _ := f.do(t, http.MethodPost, "/systems/ps/processes", `{"id":5}`)
	require.Equal(t, http.StatusCreated, status)

	status, data := f.do(t, http.MethodDelete, "/systems/ps/processes/5/supply-chain", "")
	require.Equal(t, http.StatusOK, status, string(data))
	assert.JSONEq(t, `{"host":5,"reference":1,"processes":[],"links":[]}`, string(data))
}

func TestSupplyChain_NothingRemovedReturnsEmptyLists(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	// The seed link is not part of the system, so nothing is cut.
	status, data := f.do(t, http.MethodDelete, "/systems/ps/processes/1/supply-chain",
		`{"seed":[{"provider_id":9,"process_id":1,"flow_id":1}]}`)
	require.Equal(t, http.StatusOK, status, string(data))
	assert.JSONEq(t, `{"host":1,"reference":1,"processes":[],"links":[]}`, string(data))
}
