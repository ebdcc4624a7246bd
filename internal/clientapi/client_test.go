package clientapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shoplist/internal/wire"
)

func TestCreateListSendsExpectedEnvelope(t *testing.T) {
	var decoded wire.ClientRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/client/request", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&decoded)
		json.NewEncoder(w).Encode(wire.Success("List created successfully", nil))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	resp, err := c.CreateList(context.Background(), "k1", "groceries", "alice")
	require.NoError(t, err)
	require.Equal(t, "success", resp.Status)
	require.Equal(t, "create_list", decoded.Action)
	require.Equal(t, "k1", decoded.URL)
	require.Equal(t, "groceries", decoded.Name)
	require.Equal(t, "alice", decoded.Creator)
}

func TestDeleteListSendsListURL(t *testing.T) {
	var decoded wire.ClientRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&decoded)
		json.NewEncoder(w).Encode(wire.Success("List deleted successfully", nil))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.DeleteList(context.Background(), "k1")
	require.NoError(t, err)
	require.Equal(t, "delete_list", decoded.Action)
	require.Equal(t, "k1", decoded.ListURL)
}

func TestDefaultTimeoutAppliesWhenZero(t *testing.T) {
	c := New("http://localhost:1", 0)
	require.Equal(t, 5*time.Second, c.httpClient.Timeout)
}
