package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soarclient/soarsocket/pkg/datastore"
	"github.com/soarclient/soarsocket/pkg/model"
)

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(context.Background(), testConfig(), Dependencies{})
	require.Error(t, err)
}

// closeCounter counts Close calls on the wrapped persister.
type closeCounter struct {
	*datastore.Memory
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return c.Memory.Close()
}

func TestNew_LoadFailureClosesStoreOnce(t *testing.T) {
	r := require.New(t)

	// Given a persister that cannot load
	p := &closeCounter{Memory: datastore.NewMemory(nil)}
	p.FailLoads(errors.New("disk gone"))

	// When the server is built
	_, err := New(context.Background(), testConfig(), Dependencies{Store: p})

	// Then the error surfaces and New released the persister itself
	r.ErrorContains(err, "disk gone")
	r.Equal(1, p.closes)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	r := require.New(t)

	// Given a server seeded with one stored record
	seed := datastore.Records{"a": {Identity: "a", DisplayName: "Alice", Role: model.RoleStaff}}
	srv, err := New(context.Background(), testConfig(), Dependencies{Store: datastore.NewMemory(seed)})
	r.NoError(err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// When the health endpoint is requested
	resp, err := http.Get(ts.URL + "/healthz")
	r.NoError(err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	// Then it answers ok
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Equal("ok\n", string(body))

	// When metrics are scraped
	resp, err = http.Get(ts.URL + "/metrics")
	r.NoError(err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	// Then the exposition includes the store size and connection gauges
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Contains(string(body), "soarsocket_stored_records 1\n")
	r.Contains(string(body), "soarsocket_connections_active 0\n")
	r.Contains(string(body), "# TYPE soarsocket_binds_total counter")
}
