package infra

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"dukapos/internal/config"

	"github.com/shopspring/decimal"
)

// Daraja endpoints per environment. Mock mode never touches the network.
const (
	mpesaProductionBase = "https://api.safaricom.co.ke"
	mpesaSandboxBase    = "https://sandbox.safaricom.co.ke"
)

// STKPushResult is the gateway's answer to a push-payment request. The
// CheckoutRequestID correlates the later status query / callback with this
// attempt.
type STKPushResult struct {
	CheckoutRequestID   string
	MerchantRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
}

// STKStatusResult is the answer to a status query. Success means the customer
// authorised the payment; a non-zero result code with a description is a
// definite failure (cancelled PIN prompt, insufficient funds, …).
type STKStatusResult struct {
	Success    bool
	ResultCode string
	ResultDesc string
}

// CallbackResult is the parsed form of the asynchronous stkCallback envelope.
type CallbackResult struct {
	Valid             bool
	Success           bool
	ResultCode        int
	ResultDesc        string
	CheckoutRequestID string
	MerchantRequestID string
	Amount            decimal.Decimal
	MpesaReceipt      string
	PhoneNumber       string
}

// MpesaClient wraps the Daraja STK push API: OAuth token fetch, push
// initiation, status query and callback validation. The gateway protocol is
// an external collaborator — this client only speaks it, all business
// decisions stay in the services.
type MpesaClient struct {
	consumerKey    string
	consumerSecret string
	shortcode      string
	passkey        string
	callbackURL    string
	environment    string // production | sandbox | mock
	baseURL        string
	httpClient     *http.Client

	mu          sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

func NewMpesaClient(cfg *config.Config) *MpesaClient {
	base := mpesaSandboxBase
	if cfg.MpesaEnvironment == "production" {
		base = mpesaProductionBase
	}
	return &MpesaClient{
		consumerKey:    cfg.MpesaConsumerKey,
		consumerSecret: cfg.MpesaConsumerSecret,
		shortcode:      cfg.MpesaShortcode,
		passkey:        cfg.MpesaPasskey,
		callbackURL:    cfg.MpesaCallbackURL,
		environment:    cfg.MpesaEnvironment,
		baseURL:        base,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Mock reports whether the client fabricates gateway responses locally.
func (c *MpesaClient) Mock() bool { return c.environment == "mock" }

// GetAccessToken fetches (and caches) an OAuth client-credentials token.
func (c *MpesaClient) GetAccessToken(ctx context.Context) (string, error) {
	if c.Mock() {
		return fmt.Sprintf("mock_access_token_%d", time.Now().UnixMilli()), nil
	}

	c.mu.Lock()
	if c.cachedToken != "" && time.Now().Before(c.tokenExpiry) {
		token := c.cachedToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	url := c.baseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("mpesa: create token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.consumerKey + ":" + c.consumerSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mpesa: gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mpesa: token endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("mpesa: decode token response: %w", err)
	}

	c.mu.Lock()
	c.cachedToken = body.AccessToken
	// Daraja tokens last 3600s; renew a minute early.
	c.tokenExpiry = time.Now().Add(59 * time.Minute)
	c.mu.Unlock()

	return body.AccessToken, nil
}

// InitiateSTKPush asks the gateway to prompt the customer's phone for a PIN.
// Amount is rounded to a whole shilling at the wire — Daraja only accepts
// integers; the decimal total is preserved everywhere else.
func (c *MpesaClient) InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal, accountRef, description string) (*STKPushResult, error) {
	formatted := FormatPhoneNumber(phone)
	timestamp := mpesaTimestamp(time.Now())

	if c.Mock() {
		return &STKPushResult{
			CheckoutRequestID:   fmt.Sprintf("ws_CO_%d%s", time.Now().UnixMilli(), randSuffix(6)),
			MerchantRequestID:   fmt.Sprintf("merchant_%d", time.Now().UnixMilli()),
			ResponseCode:        "0",
			ResponseDescription: "Success. Request accepted for processing",
			CustomerMessage:     "Success. Request accepted for processing",
		}, nil
	}

	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"BusinessShortCode": c.shortcode,
		"Password":          stkPassword(c.shortcode, c.passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            amount.Round(0).IntPart(),
		"PartyA":            formatted,
		"PartyB":            c.shortcode,
		"PhoneNumber":       formatted,
		"CallBackURL":       c.callbackURL,
		"AccountReference":  accountRef,
		"TransactionDesc":   description,
	}

	var body struct {
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		MerchantRequestID   string `json:"MerchantRequestID"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
		CustomerMessage     string `json:"CustomerMessage"`
	}
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", token, payload, &body); err != nil {
		return nil, err
	}
	if body.ResponseCode != "0" {
		return nil, fmt.Errorf("mpesa: push rejected: %s", body.ResponseDescription)
	}

	return &STKPushResult{
		CheckoutRequestID:   body.CheckoutRequestID,
		MerchantRequestID:   body.MerchantRequestID,
		ResponseCode:        body.ResponseCode,
		ResponseDescription: body.ResponseDescription,
		CustomerMessage:     body.CustomerMessage,
	}, nil
}

// QuerySTKStatus asks the gateway whether a push was authorised. "Not yet
// confirmed" comes back as an error from Daraja while the prompt is open;
// callers treat that as retryable, not as a definite failure.
func (c *MpesaClient) QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*STKStatusResult, error) {
	if c.Mock() {
		// 80% success rate keeps the dev flow realistic without a gateway.
		if rand.Float64() > 0.2 {
			return &STKStatusResult{Success: true, ResultCode: "0", ResultDesc: "The service request is processed successfully."}, nil
		}
		return &STKStatusResult{Success: false, ResultCode: "1032", ResultDesc: "Request cancelled by user"}, nil
	}

	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := mpesaTimestamp(time.Now())
	payload := map[string]any{
		"BusinessShortCode": c.shortcode,
		"Password":          stkPassword(c.shortcode, c.passkey, timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	var body struct {
		ResultCode string `json:"ResultCode"`
		ResultDesc string `json:"ResultDesc"`
	}
	if err := c.post(ctx, "/mpesa/stkpushquery/v1/query", token, payload, &body); err != nil {
		return nil, err
	}

	return &STKStatusResult{
		Success:    body.ResultCode == "0",
		ResultCode: body.ResultCode,
		ResultDesc: body.ResultDesc,
	}, nil
}

// stkCallbackEnvelope mirrors the Body.stkCallback JSON Daraja POSTs to the
// callback URL.
type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ValidateCallback parses and validates a raw callback payload. A malformed
// envelope yields Valid=false; a well-formed failure yields Valid=true,
// Success=false with the gateway's description.
func ValidateCallback(raw []byte) CallbackResult {
	var env stkCallbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return CallbackResult{Valid: false}
	}
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return CallbackResult{Valid: false}
	}

	result := CallbackResult{
		Valid:             true,
		Success:           cb.ResultCode == 0,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			var f float64
			if json.Unmarshal(item.Value, &f) == nil {
				result.Amount = decimal.NewFromFloat(f)
			}
		case "MpesaReceiptNumber":
			var s string
			if json.Unmarshal(item.Value, &s) == nil {
				result.MpesaReceipt = s
			}
		case "PhoneNumber":
			// Daraja sends the MSISDN as a JSON number.
			var n json.Number
			if json.Unmarshal(item.Value, &n) == nil {
				result.PhoneNumber = n.String()
			}
		}
	}
	return result
}

// FormatPhoneNumber normalises a Kenyan MSISDN to the 2547XXXXXXXX wire form.
func FormatPhoneNumber(phone string) string {
	cleaned := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(phone)
	if strings.HasPrefix(cleaned, "0") {
		cleaned = "254" + cleaned[1:]
	}
	if !strings.HasPrefix(cleaned, "254") {
		cleaned = "254" + cleaned
	}
	return cleaned
}

// stkPassword builds the Lipa Na M-Pesa password: base64(shortcode+passkey+timestamp).
func stkPassword(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// mpesaTimestamp renders the Daraja YYYYMMDDHHmmss timestamp.
func mpesaTimestamp(t time.Time) string {
	return t.Format("20060102150405")
}

func (c *MpesaClient) post(ctx context.Context, path, token string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mpesa: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mpesa: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mpesa: gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mpesa: gateway returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mpesa: decode response: %w", err)
	}
	return nil
}

const refAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = refAlphabet[rand.Intn(len(refAlphabet))]
	}
	return string(b)
}

// NewTransactionRef generates the POS-side account reference for one checkout.
func NewTransactionRef() string {
	return fmt.Sprintf("POS%d%s", time.Now().UnixMilli(), randSuffix(5))
}
