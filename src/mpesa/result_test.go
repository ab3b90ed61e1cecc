package mpesa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const successCallback = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "29115-34620561-1",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {
				"Item": [
					{"Name": "Amount", "Value": 1500.00},
					{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
					{"Name": "TransactionDate", "Value": 20191219102115},
					{"Name": "PhoneNumber", "Value": 254708374149}
				]
			}
		}
	}
}`

func TestParseCallbackSuccess(t *testing.T) {
	res, err := ParseCallback([]byte(successCallback))
	assert.NoError(t, err)
	assert.Equal(t, KindSuccess, res.Kind)
	assert.Equal(t, "ws_CO_191220191020363925", res.Checkout)
	assert.Equal(t, "NLJ7RT61SV", res.Receipt)
	assert.Equal(t, "1500", res.Amount.String())
	assert.NotNil(t, res.PaidAt)
}

func TestParseCallbackCanceled(t *testing.T) {
	payload := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	res, err := ParseCallback([]byte(payload))
	assert.NoError(t, err)
	assert.Equal(t, KindCanceled, res.Kind)
	assert.Equal(t, "Request cancelled by user", res.Reason)
}

func TestParseCallbackFailed(t *testing.T) {
	payload := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_2","ResultCode":2026,"ResultDesc":"System busy"}}}`
	res, err := ParseCallback([]byte(payload))
	assert.NoError(t, err)
	assert.Equal(t, KindFailed, res.Kind)
	assert.Equal(t, "System busy", res.Reason)
}

func TestParseCallbackHandsetTimeout(t *testing.T) {
	payload := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_2","ResultCode":1037,"ResultDesc":"DS timeout"}}}`
	res, err := ParseCallback([]byte(payload))
	assert.NoError(t, err)
	assert.Equal(t, KindTransient, res.Kind, "handset timeout is retryable, not terminal")
	assert.Equal(t, "DS timeout", res.Reason)
}

func TestParseCallbackMalformed(t *testing.T) {
	for _, payload := range []string{
		``,
		`not json`,
		`{}`,
		`{"Body":{}}`,
		`{"Body":{"stkCallback":{"ResultCode":0}}}`,
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_3"}}}`,
	} {
		_, err := ParseCallback([]byte(payload))
		assert.ErrorIs(t, err, ErrMalformedCallback, "payload: %s", payload)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindSuccess, classify("0", "").Kind)
	assert.Equal(t, KindCanceled, classify("1032", "").Kind)
	assert.Equal(t, KindCanceled, classify("1", "").Kind)
	assert.Equal(t, KindPending, classify("2001", "").Kind)
	assert.Equal(t, KindTransient, classify("1037", "timeout").Kind)
	assert.Equal(t, KindFailed, classify("2026", "system busy").Kind)
}

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, "254712345678", FormatPhone("0712345678"))
	assert.Equal(t, "254712345678", FormatPhone("+254712345678"))
	assert.Equal(t, "254712345678", FormatPhone("254712345678"))
	assert.Equal(t, "254712345678", FormatPhone("712345678"))
	assert.Equal(t, "254712345678", FormatPhone(" 0712345678 "))
}
