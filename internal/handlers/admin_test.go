package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/chainwatch/ingestor/internal/columnar"
	"github.com/chainwatch/ingestor/internal/common"
	"github.com/chainwatch/ingestor/internal/writer"
	"github.com/chainwatch/ingestor/test/mocks"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var mainnet = common.PartitionConfig{Network: "mainnet", Subnet: "c-chain", VMType: "evm"}

type fakeLake struct{ err error }

func (f fakeLake) HealthCheck(context.Context) error { return f.err }

type fakeWriter struct {
	flushedAll bool
	flushed    []string
	err        error
}

func (w *fakeWriter) Stats() []writer.PartitionStats {
	return []writer.PartitionStats{{Partition: mainnet, Buffered: 3}}
}

func (w *fakeWriter) FlushPartition(_ context.Context, key string) error {
	w.flushed = append(w.flushed, key)
	return w.err
}

func (w *fakeWriter) FlushAll(context.Context) error {
	w.flushedAll = true
	return w.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, method, target string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth {
		req.SetBasicAuth("ops", "secret")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

var testAuth = config.BasicAuthConfig{Username: "ops", Password: "secret"}

func TestHealth(t *testing.T) {
	r := NewRouter(&Admin{Lake: fakeLake{}, Writer: &fakeWriter{}}, testAuth)
	rec := serve(r, http.MethodGet, "/health", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	r = NewRouter(&Admin{Lake: fakeLake{err: errors.New("writer connection unhealthy")}, Writer: &fakeWriter{}}, testAuth)
	rec = serve(r, http.MethodGet, "/health", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "writer connection unhealthy")
}

func TestPartitionsRequiresAuth(t *testing.T) {
	r := NewRouter(&Admin{Lake: fakeLake{}, Writer: &fakeWriter{}}, testAuth)

	rec := serve(r, http.MethodGet, "/partitions", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(r, http.MethodGet, "/partitions", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []writer.PartitionStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, mainnet, body.Data[0].Partition)
	assert.Equal(t, 3, body.Data[0].Buffered)
}

func TestAuthDisabledWithoutUsername(t *testing.T) {
	r := NewRouter(&Admin{Lake: fakeLake{}, Writer: &fakeWriter{}}, config.BasicAuthConfig{})
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/partitions", false).Code)
}

func TestFlush(t *testing.T) {
	w := &fakeWriter{}
	r := NewRouter(&Admin{Lake: fakeLake{}, Writer: w}, testAuth)

	rec := serve(r, http.MethodPost, "/flush", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, w.flushedAll)

	rec = serve(r, http.MethodPost, "/flush?network=mainnet&subnet=c-chain&vm_type=evm", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"mainnet:c-chain:evm"}, w.flushed)

	rec = serve(r, http.MethodPost, "/flush?network=mainnet", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w.err = errors.New("disk full")
	rec = serve(r, http.MethodPost, "/flush", true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/flush", true).Code)
}

func TestBatches(t *testing.T) {
	ledger := mocks.NewMockIBatchLedger(t)
	lo, hi := uint64(10), uint64(20)
	ledger.EXPECT().ListBatches(mock.Anything, mainnet, 5).Return([]columnar.BatchMetadata{
		{Partition: mainnet, MinBlock: &lo, MaxBlock: &hi, TxCount: 42, FilePath: "s3://lake/txs/a.parquet"},
	}, nil)

	r := NewRouter(&Admin{Lake: fakeLake{}, Writer: &fakeWriter{}, Ledger: ledger}, testAuth)

	rec := serve(r, http.MethodGet, "/batches?network=mainnet&subnet=c-chain&vm_type=evm&limit=5", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []columnar.BatchMetadata `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, 42, body.Data[0].TxCount)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/batches", true).Code)
}

func TestBatchesNotRegisteredWithoutLedger(t *testing.T) {
	r := NewRouter(&Admin{Lake: fakeLake{}, Writer: &fakeWriter{}}, testAuth)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/batches", true).Code)
}

func TestMetrics(t *testing.T) {
	r := NewRouter(&Admin{Lake: fakeLake{}, Writer: &fakeWriter{}}, testAuth)
	rec := serve(r, http.MethodGet, "/metrics", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
