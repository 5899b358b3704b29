package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount  string
		want    int64
		wantErr bool
	}{
		{"15.00", 1500, false},
		{"0.01", 1, false},
		{"250", 25000, false},
		{"12.345", 0, true},
		{"0", 0, true},
		{"-5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.True(t, FromMinorUnits(1550).Equal(decimal.RequireFromString("15.50")))
}

func newPaymentRequest() *PaymentRequest {
	return &PaymentRequest{
		Amount:      decimal.RequireFromString("15.50"),
		Description: "Sewa Tapak Bazar Ramadan",
		PayerEmail:  "jane@example.com",
		PayerName:   "Jane",
		CallbackURL: "https://app.example.com/api/v1/payments/callback",
		RedirectURL: "https://app.example.com/bayaran/selesai",
		Reference:   "rent-7",
	}
}

func TestBillplzProvider_CreateBill(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/bills", r.URL.Path)
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "api-key", user)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"bill_123","url":"https://billplz.test/bills/bill_123"}`))
	}))
	defer server.Close()

	provider := NewBillplzProvider(BillplzConfig{BaseURL: server.URL + "/api/v3", APIKey: "api-key", CollectionID: "col-1"})
	result, err := provider.CreateBill(context.Background(), newPaymentRequest())
	require.NoError(t, err)

	assert.Equal(t, "bill_123", result.ProviderID)
	assert.Equal(t, "https://billplz.test/bills/bill_123", result.RedirectURL)
	assert.Equal(t, "1550", form.Get("amount"))
	assert.Equal(t, "col-1", form.Get("collection_id"))
	assert.Equal(t, "Sewa Tapak Bazar Ramadan", form.Get("description"))
	assert.Equal(t, "rent-7", form.Get("reference_1"))
}

func TestBillplzProvider_CreateBillFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"type":"RecordInvalid","message":["Email is invalid"]}}`))
	}))
	defer server.Close()

	provider := NewBillplzProvider(BillplzConfig{BaseURL: server.URL, APIKey: "k"})
	_, err := provider.CreateBill(context.Background(), newPaymentRequest())

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, ProviderBillplz, gwErr.Provider)
	assert.Equal(t, http.StatusUnprocessableEntity, gwErr.StatusCode)
	assert.Contains(t, gwErr.Payload, "Email is invalid")
}

func TestBillplzProvider_DescriptionTruncated(t *testing.T) {
	var description string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		description = r.PostForm.Get("description")
		_, _ = w.Write([]byte(`{"id":"b","url":"u"}`))
	}))
	defer server.Close()

	req := newPaymentRequest()
	req.Description = strings.Repeat("a", 300)
	_, err := NewBillplzProvider(BillplzConfig{BaseURL: server.URL}).CreateBill(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, description, maxDescriptionLength)
}

func TestParseBillCallback(t *testing.T) {
	form := url.Values{
		"id":          {"bill_123"},
		"paid":        {"true"},
		"state":       {"paid"},
		"amount":      {"1550"},
		"paid_amount": {"1550"},
		"email":       {"jane@example.com"},
		"name":        {"Jane"},
		"url":         {"https://billplz.test/bills/bill_123"},
	}

	n, err := ParseBillCallback(form)
	require.NoError(t, err)
	assert.Equal(t, "bill_123", n.ProviderID)
	assert.True(t, n.IsSettled())
	assert.Equal(t, int64(1550), n.PaidAmount)
	assert.Equal(t, "https://billplz.test/bills/bill_123", n.ReceiptURL)

	form.Set("paid", "false")
	n, err = ParseBillCallback(form)
	require.NoError(t, err)
	assert.False(t, n.IsSettled())

	_, err = ParseBillCallback(url.Values{"paid": {"true"}})
	assert.Error(t, err)

	// unsettled notices without an id still parse so they can be ignored
	n, err = ParseBillCallback(url.Values{"paid": {"false"}, "state": {"due"}})
	require.NoError(t, err)
	assert.Empty(t, n.ProviderID)
	assert.False(t, n.IsSettled())
}

func TestBillplzProvider_ParseCallbackSignature(t *testing.T) {
	provider := NewBillplzProvider(BillplzConfig{XSignatureKey: "secret"})
	form := url.Values{"id": {"bill_1"}, "paid": {"true"}, "state": {"paid"}}
	form.Set("x_signature", SignXSignature(form, "secret"))

	n, err := provider.ParseCallback(form)
	require.NoError(t, err)
	assert.Equal(t, "bill_1", n.ProviderID)

	form.Set("paid", "false")
	_, err = provider.ParseCallback(form)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	unsigned := NewBillplzProvider(BillplzConfig{})
	_, err = unsigned.ParseCallback(url.Values{"id": {"bill_2"}})
	assert.NoError(t, err)
}

func TestStripeProvider_CreateBill(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.test/cs_test_1"}`))
	}))
	defer server.Close()

	provider := NewStripeProvider(StripeConfig{SecretKey: "sk_test_1", BackendURL: server.URL})
	result, err := provider.CreateBill(context.Background(), newPaymentRequest())
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", result.ProviderID)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", result.RedirectURL)
	assert.Equal(t, "1550", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "myr", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "Sewa Tapak Bazar Ramadan", form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "rent-7", form.Get("client_reference_id"))
}

func TestStripeProvider_CreateBillFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid currency"}}`))
	}))
	defer server.Close()

	provider := NewStripeProvider(StripeConfig{SecretKey: "sk_test_1", BackendURL: server.URL})
	_, err := provider.CreateBill(context.Background(), newPaymentRequest())

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, ProviderStripe, gwErr.Provider)
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Contains(t, gwErr.Payload, "Invalid currency")
}

func signedEvent(t *testing.T, secret string, event map[string]interface{}) ([]byte, string) {
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret})
	return signed.Payload, signed.Header
}

func TestStripeProvider_ParseWebhook(t *testing.T) {
	provider := NewStripeProvider(StripeConfig{SecretKey: "sk_test_1", WebhookSecret: "whsec_test"})

	payload, header := signedEvent(t, "whsec_test", map[string]interface{}{
		"id":     "evt_1",
		"object": "event",
		"type":   "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":             "cs_test_1",
				"object":         "checkout.session",
				"payment_status": "paid",
				"amount_total":   1550,
				"customer_details": map[string]interface{}{
					"email": "jane@example.com",
					"name":  "Jane",
				},
			},
		},
	})

	n, err := provider.ParseWebhook(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", n.ProviderID)
	assert.True(t, n.IsSettled())
	assert.Equal(t, int64(1550), n.PaidAmount)
	assert.Equal(t, "jane@example.com", n.Email)

	_, err = provider.ParseWebhook(payload, "t=1,v1=bad")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	payload, header = signedEvent(t, "whsec_test", map[string]interface{}{
		"id": "evt_2", "object": "event", "type": "customer.created",
		"data": map[string]interface{}{"object": map[string]interface{}{"id": "cus_1"}},
	})
	_, err = provider.ParseWebhook(payload, header)
	assert.ErrorIs(t, err, ErrUnhandledEvent)
}

type stubProvider struct {
	name  string
	delay time.Duration
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) CreateBill(ctx context.Context, req *PaymentRequest) (*PaymentResult, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return &PaymentResult{ProviderID: s.name + "-1", RedirectURL: "https://pay/" + s.name}, nil
}

func TestAdapter_SelectsProvider(t *testing.T) {
	sandbox := &stubProvider{name: ProviderBillplz}
	live := &stubProvider{name: ProviderStripe}
	adapter := NewAdapter(sandbox, live, time.Second)

	result, err := adapter.InitiatePayment(context.Background(), newPaymentRequest(), true)
	require.NoError(t, err)
	assert.Equal(t, ProviderBillplz, result.Provider)

	result, err = adapter.InitiatePayment(context.Background(), newPaymentRequest(), false)
	require.NoError(t, err)
	assert.Equal(t, ProviderStripe, result.Provider)
	assert.Equal(t, 1, sandbox.calls)
	assert.Equal(t, 1, live.calls)

	req := newPaymentRequest()
	req.Amount = decimal.Zero
	_, err = adapter.InitiatePayment(context.Background(), req, true)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, 1, sandbox.calls)
}

func TestAdapter_Timeout(t *testing.T) {
	adapter := NewAdapter(&stubProvider{name: ProviderBillplz, delay: time.Second}, nil, 10*time.Millisecond)
	_, err := adapter.InitiatePayment(context.Background(), newPaymentRequest(), false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
