package dns

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupPassesThroughIPs(t *testing.T) {
	ip, err := Lookup(context.Background(), "10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", ip)

	ip, err = Lookup(context.Background(), "::1")
	require.NoError(t, err)
	assert.Equal(t, "::1", ip)
}

func TestDialContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)

	addr := srv.Listener.Addr().String()
	conn, err := DialContext(context.Background(), "tcp", addr)
	require.NoError(t, err)
	conn.Close()

	_, err = DialContext(context.Background(), "tcp", "missing-port")
	var addrErr *net.AddrError
	assert.ErrorAs(t, err, &addrErr)
}
