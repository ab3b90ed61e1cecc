package mpesa

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"tikiti/src/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	cfg := config.MpesaConfig{
		BaseURL:          srv.URL,
		ConsumerKey:      "key",
		ConsumerSecret:   "secret",
		ShortCode:        "174379",
		Passkey:          "passkey",
		CallbackURL:      "https://example.com/api/v1/payments/callback",
		AccountReference: "Tikiti",
		TransactionDesc:  "Ticket purchase",
	}
	return NewClient(cfg), srv
}

func tokenResponse(w http.ResponseWriter) {
	json.NewEncoder(w).Encode(map[string]string{
		"access_token": "test-token",
		"expires_in":   "3599",
	})
}

func TestInitiateSTKPush(t *testing.T) {
	var pushBody []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		tokenResponse(w)
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		pushBody = body
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":      "0",
			"CheckoutRequestID": "ws_CO_123",
		})
	})
	c, srv := newTestClient(mux)
	defer srv.Close()

	checkout, err := c.InitiateSTKPush(context.Background(), decimal.NewFromInt(1500), "0712345678")
	assert.NoError(t, err)
	assert.Equal(t, "ws_CO_123", checkout)

	assert.Equal(t, "254712345678", gjson.GetBytes(pushBody, "PhoneNumber").String())
	assert.Equal(t, "1500", gjson.GetBytes(pushBody, "Amount").String())
	assert.Equal(t, "CustomerPayBillOnline", gjson.GetBytes(pushBody, "TransactionType").String())
	assert.NotEmpty(t, gjson.GetBytes(pushBody, "Password").String())
}

func TestInitiateSTKPushGatewayRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		tokenResponse(w)
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":        "1",
			"ResponseDescription": "Insufficient balance on the utility account",
		})
	})
	c, srv := newTestClient(mux)
	defer srv.Close()

	_, err := c.InitiateSTKPush(context.Background(), decimal.NewFromInt(100), "0712345678")
	assert.Error(t, err)
	var ge *GatewayError
	assert.ErrorAs(t, err, &ge)
	assert.Equal(t, "stkpush", ge.Op)
}

func TestQueryStatusCanceled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		tokenResponse(w)
	})
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "ws_CO_456", gjson.GetBytes(body, "CheckoutRequestID").String())
		json.NewEncoder(w).Encode(map[string]string{
			"ResultCode": "1032",
			"ResultDesc": "Request cancelled by user",
		})
	})
	c, srv := newTestClient(mux)
	defer srv.Close()

	res, err := c.QueryStatus(context.Background(), "ws_CO_456")
	assert.NoError(t, err)
	assert.Equal(t, KindCanceled, res.Kind)
	assert.Equal(t, "ws_CO_456", res.Checkout)
}

func TestQueryStatusRefreshesStaleToken(t *testing.T) {
	tokens := 0
	queries := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		tokens++
		tokenResponse(w)
	})
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		queries++
		if queries == 1 {
			json.NewEncoder(w).Encode(map[string]string{
				"errorCode":    "404.001.04",
				"errorMessage": "Invalid Access Token",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"ResultCode": "0",
			"ResultDesc": "The service request is processed successfully.",
		})
	})
	c, srv := newTestClient(mux)
	defer srv.Close()

	res, err := c.QueryStatus(context.Background(), "ws_CO_789")
	assert.NoError(t, err)
	assert.Equal(t, KindSuccess, res.Kind)
	assert.Equal(t, 2, tokens, "stale token should force one refresh")
	assert.Equal(t, 2, queries)
}

func TestAccessTokenCached(t *testing.T) {
	tokens := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		tokens++
		tokenResponse(w)
	})
	c, srv := newTestClient(mux)
	defer srv.Close()

	_, err := c.AccessToken(context.Background(), false)
	assert.NoError(t, err)
	_, err = c.AccessToken(context.Background(), false)
	assert.NoError(t, err)
	assert.Equal(t, 1, tokens, "second call should come from cache")
}
