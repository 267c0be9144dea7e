package giftapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/execution"
)

func TestClient_FetchBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/accounts/1/balance", r.URL.Path)
		assert.Equal(t, "session-blob", r.Header.Get("X-Account-Credentials"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"balance": 150}`))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL})
	balance, err := client.FetchBalance(context.Background(), &domain.AccountSnapshot{
		ID: 1, Credentials: "session-blob",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)
}

func TestClient_FetchBalanceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL})
	_, err := client.FetchBalance(context.Background(), &domain.AccountSnapshot{ID: 1})
	assert.Error(t, err)
}

func TestClient_SendSuccess(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/gifts/send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL})
	op := domain.PurchaseOperation{AccountID: 1, DestinationID: -100, OfferID: 10, Price: 25}
	err := client.Send(context.Background(), op, &domain.AccountSnapshot{ID: 1})
	require.NoError(t, err)

	assert.Equal(t, int64(10), got.OfferID)
	assert.Equal(t, int64(-100), got.DestinationID)
}

func TestClient_SendFailureCarriesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code": "PEER_FLOOD", "message": "too many requests"}`))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL})
	err := client.Send(context.Background(), domain.PurchaseOperation{OfferID: 10}, &domain.AccountSnapshot{ID: 1})
	require.Error(t, err)

	var sendErr *execution.SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Equal(t, "PEER_FLOOD", sendErr.Code)
	assert.Equal(t, "too many requests", sendErr.Message)
}

func TestClient_SendFailureWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL})
	err := client.Send(context.Background(), domain.PurchaseOperation{OfferID: 10}, &domain.AccountSnapshot{ID: 1})

	var sendErr *execution.SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Equal(t, "HTTP_502", sendErr.Code)
}

func TestClient_ResolveRecipientIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req resolveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int64{1, 2}, req.AccountIDs)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"recipient_ids": [7001, 7002]}`))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL})
	ids, err := client.ResolveRecipientIDs(context.Background(), []*domain.AccountSnapshot{
		{ID: 1}, {ID: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{7001, 7002}, ids)
}
