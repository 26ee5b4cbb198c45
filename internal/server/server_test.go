package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/nfdiff/internal/assess"
	"github.com/dshills/nfdiff/internal/contract"
	"github.com/dshills/nfdiff/internal/rules"
	"github.com/dshills/nfdiff/internal/schema"
	"github.com/dshills/nfdiff/internal/service"
	"github.com/dshills/nfdiff/internal/stream"
)

type memIngest struct {
	mu      sync.Mutex
	items   [][]byte
	pingErr error
	pushErr error
}

func (m *memIngest) Push(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pushErr != nil {
		return m.pushErr
	}
	m.items = append([][]byte{payload}, m.items...)
	return nil
}

func (m *memIngest) Latest(_ context.Context, n int64) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int64(len(m.items)) < n {
		n = int64(len(m.items))
	}
	return m.items[:n], nil
}

func (m *memIngest) Ping(context.Context) error { return m.pingErr }

func newLoop(t *testing.T, hub *stream.Hub) *service.Loop {
	t.Helper()
	sch, err := contract.Parse([]byte(`{"type": "object", "properties": {"nfInstanceId": {}, "nfStatus": {}}}`))
	require.NoError(t, err)
	rs, err := rules.Parse([]byte("rules:\n  - path: nfStatus\n    compare: exact\n    severity: critical\n"))
	require.NoError(t, err)
	e, err := assess.New(assess.Settings{Schema: sch, Rules: rs, MaxDiffVolume: 50})
	require.NoError(t, err)
	return service.New(e, nil, service.WithHub(hub))
}

const envelope = `{"request": {"nfInstanceId": "nf-7"},
  "open5gs": {"nfInstanceId": "nf-7", "nfStatus": "REGISTERED"},
  "free5gc": "{\"nfInstanceId\": \"nf-7\", \"nfStatus\": \"SUSPENDED\"}"}`

func newTestServer(t *testing.T, ingest Ingest) (*httptest.Server, *stream.Hub, *service.Loop) {
	t.Helper()
	hub := stream.NewHub()
	loop := newLoop(t, hub)
	opts := []Option{}
	if ingest != nil {
		opts = append(opts, WithIngest(ingest))
	}
	ts := httptest.NewServer(New(loop, hub, opts...).Routes())
	t.Cleanup(ts.Close)
	return ts, hub, loop
}

func TestAssess(t *testing.T) {
	ts, _, loop := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/assess", "application/json", strings.NewReader(envelope))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var r schema.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	assert.Equal(t, schema.VerdictCritical, r.Verdict)
	assert.Equal(t, "nf-7", r.ID())
	require.Len(t, r.Outcomes, 1)
	assert.Equal(t, "nfStatus", r.Outcomes[0].Path)
	assert.Equal(t, uint64(1), loop.Stats().Assessed)
}

func TestAssess_MalformedBodyStillAssessed(t *testing.T) {
	ts, _, loop := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/assess", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var r schema.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	assert.Nil(t, r.Identifier)
	assert.Equal(t, uint64(4), loop.Stats().DecodeFailures)
}

func TestDiffIngest(t *testing.T) {
	ingest := &memIngest{}
	ts, _, _ := newTestServer(t, ingest)

	for _, body := range []string{`{"n": 1}`, `{"n": 2}`, `{"n": 3}`} {
		resp, err := http.Post(ts.URL+"/diff", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		var echoed map[string]int
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&echoed))
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotZero(t, echoed["n"])
	}

	resp, err := http.Get(ts.URL + "/diffs/latest?count=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	var latest []map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&latest))
	assert.Equal(t, []map[string]int{{"n": 3}, {"n": 2}}, latest)
}

func TestDiffIngest_Errors(t *testing.T) {
	ingest := &memIngest{}
	ts, _, _ := newTestServer(t, ingest)

	resp, err := http.Post(ts.URL+"/diff", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/diffs/latest?count=-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ingest.pushErr = errors.New("READONLY")
	resp, err = http.Post(ts.URL+"/diff", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestDiffIngest_Unavailable(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	resp, err := http.Post(ts.URL+"/diff", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ingest := &memIngest{}
	ts, _, _ := newTestServer(t, ingest)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["redis"])
	assert.Contains(t, body, "stats")

	ingest.pingErr = errors.New("connection refused")
	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStreamSSE(t *testing.T) {
	ts, _, loop := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/analysis/latest", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	loop.Handle(context.Background(), []byte(envelope))

	for {
		line, err = rd.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	var r schema.Report
	require.NoError(t, json.Unmarshal(bytes.TrimPrefix([]byte(strings.TrimSpace(line)), []byte("data: ")), &r))
	assert.Equal(t, schema.VerdictCritical, r.Verdict)
}

func TestStreamWS(t *testing.T) {
	ts, hub, loop := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/analysis/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	loop.Handle(context.Background(), []byte(envelope))

	var r schema.Report
	require.NoError(t, wsjson.Read(ctx, conn, &r))
	assert.Equal(t, schema.VerdictCritical, r.Verdict)
	assert.Equal(t, "nf-7", r.ID())
}

func TestListenAndServe_Shutdown(t *testing.T) {
	hub := stream.NewHub()
	srv := New(newLoop(t, hub), hub)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}
