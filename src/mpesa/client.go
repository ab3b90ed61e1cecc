package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"tikiti/src/config"
	"tikiti/src/lib"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	tokenCacheKey = "mpesa:access_token"
	// Daraja tokens live for an hour; refresh a little early.
	tokenTTL = 50 * time.Minute

	authErrorCode = "404.001.04"
)

// Gateway is the surface the purchase and reconciliation code depends on.
// Client is the Daraja implementation; tests substitute their own.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, amount decimal.Decimal, phone string) (checkoutRequestID string, err error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*Result, error)
}

type Client struct {
	cfg  config.MpesaConfig
	http *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewClient(cfg config.MpesaConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// AccessToken returns a cached oauth token, consulting redis first so that
// instances share a token, then falling back to a fresh grant.
func (c *Client) AccessToken(ctx context.Context, forceRefresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !forceRefresh {
		if c.token != "" && time.Now().Before(c.tokenExp) {
			return c.token, nil
		}
		if rdb := lib.GetRedisClient(); rdb != nil {
			if tok, err := rdb.Get(ctx, tokenCacheKey).Result(); err == nil && tok != "" {
				c.token = tok
				c.tokenExp = time.Now().Add(time.Minute)
				return tok, nil
			}
		}
	}
	endpoint := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", c.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &GatewayError{Op: "token", Err: err}
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &GatewayError{Op: "token", Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &GatewayError{Op: "token", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}
	tok := gjson.GetBytes(body, "access_token").String()
	if tok == "" {
		return "", &GatewayError{Op: "token", Err: fmt.Errorf("no access_token in response")}
	}
	c.token = tok
	c.tokenExp = time.Now().Add(tokenTTL)
	if rdb := lib.GetRedisClient(); rdb != nil {
		if err := rdb.Set(ctx, tokenCacheKey, tok, tokenTTL).Err(); err != nil {
			log.Printf("[mpesa] Failed to cache access token: %s\n", err.Error())
		}
	}
	return tok, nil
}

// FormatPhone normalizes a subscriber number to the 2547XXXXXXXX form the
// gateway requires.
func FormatPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "0") {
		return "254" + phone[1:]
	}
	if !strings.HasPrefix(phone, "254") {
		return "254" + phone
	}
	return phone
}

func (c *Client) password(timestamp string) string {
	data := c.cfg.ShortCode + c.cfg.Passkey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(data))
}

func (c *Client) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	token, err := c.AccessToken(ctx, false)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	doPost := func(tok string) ([]byte, int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, 0, err
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return data, resp.StatusCode, nil
	}
	data, status, err := doPost(token)
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	// A stale token surfaces as an errorCode rather than a 401. Refresh
	// once and replay.
	if gjson.GetBytes(data, "errorCode").String() == authErrorCode {
		log.Printf("[mpesa] Stale access token on %s, refreshing\n", op)
		token, err = c.AccessToken(ctx, true)
		if err != nil {
			return nil, err
		}
		data, status, err = doPost(token)
		if err != nil {
			return nil, &GatewayError{Op: op, Err: err}
		}
	}
	if status != http.StatusOK {
		code := gjson.GetBytes(data, "errorCode").String()
		return nil, &GatewayError{Op: op, Code: code, Err: fmt.Errorf("status %d: %s", status, string(data))}
	}
	if code := gjson.GetBytes(data, "errorCode").String(); code != "" {
		return nil, &GatewayError{Op: op, Code: code, Err: fmt.Errorf("%s", gjson.GetBytes(data, "errorMessage").String())}
	}
	return data, nil
}

// InitiateSTKPush sends the payment prompt to the customer's handset and
// returns the CheckoutRequestID that identifies the transaction from here on.
func (c *Client) InitiateSTKPush(ctx context.Context, amount decimal.Decimal, phone string) (string, error) {
	phone = FormatPhone(phone)
	timestamp := time.Now().Format("20060102150405")
	payload := map[string]string{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            amount.Round(0).String(),
		"PartyA":            phone,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  c.cfg.AccountReference,
		"TransactionDesc":   c.cfg.TransactionDesc,
	}
	log.Printf("[mpesa] Initiating STK push for %s, amount %s\n", phone, amount.String())
	data, err := c.post(ctx, "stkpush", "/mpesa/stkpush/v1/processrequest", payload)
	if err != nil {
		return "", err
	}
	if rc := gjson.GetBytes(data, "ResponseCode").String(); rc != "0" {
		desc := gjson.GetBytes(data, "ResponseDescription").String()
		return "", &GatewayError{Op: "stkpush", Code: rc, Err: fmt.Errorf("%s", desc)}
	}
	checkout := gjson.GetBytes(data, "CheckoutRequestID").String()
	if checkout == "" {
		return "", &GatewayError{Op: "stkpush", Err: fmt.Errorf("missing CheckoutRequestID in response")}
	}
	lib.StkPushesInitiated.Inc()
	return checkout, nil
}

// QueryStatus asks the gateway where a push ended up. Communication failures
// come back as *GatewayError; business outcomes come back as a Result.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*Result, error) {
	timestamp := time.Now().Format("20060102150405")
	payload := map[string]string{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}
	data, err := c.post(ctx, "stkpushquery", "/mpesa/stkpushquery/v1/query", payload)
	if err != nil {
		return nil, err
	}
	res := classify(gjson.GetBytes(data, "ResultCode").String(), gjson.GetBytes(data, "ResultDesc").String())
	res.Checkout = checkoutRequestID
	if res.Kind == KindSuccess {
		res.Receipt = gjson.GetBytes(data, "MpesaReceiptNumber").String()
		now := time.Now()
		res.PaidAt = &now
	}
	return &res, nil
}
