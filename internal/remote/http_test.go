package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/model"
)

func staticToken(tok string) TokenFunc {
	return func() (string, error) { return tok, nil }
}

func TestHTTPClient_SaveOK(t *testing.T) {
	var got SaveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/shop/save", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"ok","id_map":{"-1":101,"-2":102},"updated_count":0,"deleted_count":1}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", staticToken("tok"))
	resp, err := c.Save(context.Background(), SaveRequest{
		RequestID:  "h1",
		Kind:       model.KindShop,
		AddedRows:  []AddedRow{{TempID: -1, Fields: model.NewFields(model.F("memo", model.Text("a")))}},
		DeletedIDs: []int64{7},
	})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{-1: 101, -2: 102}, resp.IDMap)
	assert.Equal(t, 1, resp.DeletedCount)

	assert.Equal(t, "h1", got.RequestID)
	require.Len(t, got.AddedRows, 1)
	assert.Equal(t, int64(-1), got.AddedRows[0].TempID)
}

func TestHTTPClient_StatusErrorIsApplicationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"duplicate key"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, nil).Save(context.Background(), SaveRequest{Kind: model.KindShop})
	require.Error(t, err)
	assert.True(t, IsApplication(err))

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "duplicate key", re.Message)
}

func TestHTTPClient_Non2xxIsApplicationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status":"error","message":"row 9 not found"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, nil).ChangeStatus(context.Background(), StatusRequest{Kind: model.KindShop})
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindApplication, re.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, re.StatusCode)
	assert.Equal(t, "row 9 not found", re.Message)
}

func TestHTTPClient_PlainTextErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, nil).Rows(context.Background(), model.KindShop, "active")
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "Invalid token", re.Message)
}

func TestHTTPClient_TimeoutIsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPClient(srv.URL, nil, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := c.Save(context.Background(), SaveRequest{Kind: model.KindShop})
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.False(t, IsApplication(err))
}

func TestHTTPClient_RefusedIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient(url, nil).Save(context.Background(), SaveRequest{Kind: model.KindShop})
	assert.True(t, IsTransport(err))
}

func TestHTTPClient_UndecodableSuccessIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, nil).Save(context.Background(), SaveRequest{Kind: model.KindShop})
	assert.True(t, IsTransport(err))
}

func TestHTTPClient_Rows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/oneroom/rows", r.URL.Path)
		assert.Equal(t, "completed", r.URL.Query().Get("bucket"))
		_, _ = w.Write([]byte(`{"rows":[{"id":3,"status":"fresh","fields":{"rooms":2}}]}`))
	}))
	defer srv.Close()

	rows, err := NewHTTPClient(srv.URL, nil).Rows(context.Background(), model.KindOneRoom, "completed")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].ID)
	assert.JSONEq(t, "2", string(rows[0].Fields["rooms"]))
}
