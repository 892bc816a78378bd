package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkm2-predict/api/internal/apperr"
)

func TestComputeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/descriptors", r.URL.Path)
		var in computeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "CCO", in.SMILES)
		_, _ = w.Write([]byte(`{"descriptors":{"nN":0,"nX":0,"SdS":null,"AATS2i":153.2}}`))
	}))
	defer srv.Close()

	m, err := New(srv.URL+"/", 0).Compute(context.Background(), "CCO")
	require.NoError(t, err)
	assert.Equal(t, 153.2, m["AATS2i"])
	_, ok := m["SdS"]
	assert.False(t, ok, "null values count as missing")
}

func TestComputeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"cannot parse SMILES 'C1CC('"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).Compute(context.Background(), "C1CC(")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidStructure)
	assert.Equal(t, "cannot parse SMILES 'C1CC('", err.Error())
}

func TestComputeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).Compute(context.Background(), "CCO")
	assert.ErrorIs(t, err, apperr.ErrDescriptorUnavailable)
}

func TestComputeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, 0).Compute(context.Background(), "CCO")
	assert.ErrorIs(t, err, apperr.ErrDescriptorUnavailable)
}
