package infra

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"dukapos/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPhoneNumber(t *testing.T) {
	cases := map[string]string{
		"0712345678":      "254712345678",
		"0712 345-678":    "254712345678",
		"+254712345678":   "254712345678",
		"254712345678":    "254712345678",
		"712345678":       "254712345678",
		"+254 712 345678": "254712345678",
	}
	for input, want := range cases {
		assert.Equal(t, want, FormatPhoneNumber(input), "input %q", input)
	}
}

func TestStkPasswordEncoding(t *testing.T) {
	got := stkPassword("174379", "passkey", "20260901120000")
	decoded, err := base64.StdEncoding.DecodeString(got)
	require.NoError(t, err)
	assert.Equal(t, "174379passkey20260901120000", string(decoded))
}

func TestMpesaTimestampFormat(t *testing.T) {
	at := time.Date(2026, 9, 1, 14, 5, 9, 0, time.UTC)
	assert.Equal(t, "20260901140509", mpesaTimestamp(at))
}

func TestValidateCallbackSuccess(t *testing.T) {
	raw := []byte(`{
		"Body": {"stkCallback": {
			"MerchantRequestID": "merchant_1",
			"CheckoutRequestID": "ws_CO_123",
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {"Item": [
				{"Name": "Amount", "Value": 160.0},
				{"Name": "MpesaReceiptNumber", "Value": "SBK12XYZ99"},
				{"Name": "TransactionDate", "Value": 20260901140509},
				{"Name": "PhoneNumber", "Value": 254712345678}
			]}
		}}
	}`)

	result := ValidateCallback(raw)
	require.True(t, result.Valid)
	assert.True(t, result.Success)
	assert.Equal(t, "ws_CO_123", result.CheckoutRequestID)
	assert.Equal(t, "SBK12XYZ99", result.MpesaReceipt)
	assert.Equal(t, "254712345678", result.PhoneNumber)
	assert.True(t, result.Amount.Equal(decimal.NewFromInt(160)))
}

func TestValidateCallbackFailure(t *testing.T) {
	raw := []byte(`{
		"Body": {"stkCallback": {
			"MerchantRequestID": "merchant_1",
			"CheckoutRequestID": "ws_CO_123",
			"ResultCode": 1032,
			"ResultDesc": "Request cancelled by user"
		}}
	}`)

	result := ValidateCallback(raw)
	require.True(t, result.Valid, "a cancelled push is still a well-formed callback")
	assert.False(t, result.Success)
	assert.Equal(t, 1032, result.ResultCode)
	assert.Equal(t, "Request cancelled by user", result.ResultDesc)
	assert.Empty(t, result.MpesaReceipt)
}

func TestValidateCallbackMalformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{}`,
		`{"Body": {"stkCallback": {"ResultCode": 0}}}`,
	} {
		result := ValidateCallback([]byte(raw))
		assert.False(t, result.Valid, "payload %q must be rejected", raw)
	}
}

func TestMockClientFabricatesPush(t *testing.T) {
	c := NewMpesaClient(&config.Config{MpesaEnvironment: "mock"})
	result, err := c.InitiateSTKPush(context.Background(), "0712345678", decimal.NewFromInt(160), "POS1", "checkout")
	require.NoError(t, err)
	assert.Equal(t, "0", result.ResponseCode)
	assert.Contains(t, result.CheckoutRequestID, "ws_CO_")
}

func TestTransactionRefsAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ref := NewTransactionRef()
		assert.False(t, seen[ref], "duplicate ref %s", ref)
		seen[ref] = true
	}
}
