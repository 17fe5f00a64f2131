package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pulkit07/metric-health-backend/internal/signing"
)

func TestSend_PostsSignedBody(t *testing.T) {
	body := []byte(`{"data":{},"uuid":"u1"}`)
	sig := signing.Sign(body, "key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, sig, r.Header.Get(signing.HeaderName))
		got, _ := io.ReadAll(r.Body)
		assert.Equal(t, body, got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	status, err := NewSender(0, "").Send(context.Background(), srv.URL, body, sig)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)
}

func TestSend_ReturnsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	status, err := NewSender(0, "").Send(context.Background(), srv.URL, []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestSend_CustomHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sig", r.Header.Get("X-Custom-Signature"))
	}))
	defer srv.Close()

	status, err := NewSender(0, "X-Custom-Signature").Send(context.Background(), srv.URL, []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestSend_Timeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()
	defer close(done)

	status, err := NewSender(50*time.Millisecond, "").Send(context.Background(), srv.URL, []byte(`{}`), "sig")
	assert.Error(t, err)
	assert.Equal(t, 0, status)
}

func TestSend_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewSender(time.Second, "").Send(context.Background(), url, []byte(`{}`), "sig")
	assert.Error(t, err)
}
