package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/webdevsha/permitakaun/internal/domain"
)

// maxDescriptionLength is the bill description limit of the provider
const maxDescriptionLength = 200

// ErrInvalidSignature is returned for callbacks whose x_signature does not verify
var ErrInvalidSignature = errors.New("invalid callback signature")

// BillplzConfig holds the bill provider settings
type BillplzConfig struct {
	BaseURL        string
	APIKey         string
	CollectionID   string
	XSignatureKey  string
	RequestTimeout time.Duration
}

// BillplzProvider creates bills with a flat description over a form-encoded API
type BillplzProvider struct {
	config     BillplzConfig
	httpClient *http.Client
}

// NewBillplzProvider creates a new bill provider
func NewBillplzProvider(config BillplzConfig) *BillplzProvider {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BillplzProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider name
func (p *BillplzProvider) Name() string {
	return ProviderBillplz
}

// CreateBill creates a bill and returns its id and payment page
func (p *BillplzProvider) CreateBill(ctx context.Context, req *PaymentRequest) (*PaymentResult, error) {
	minor, err := ToMinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("collection_id", p.config.CollectionID)
	form.Set("email", req.PayerEmail)
	form.Set("name", req.PayerName)
	form.Set("amount", strconv.FormatInt(minor, 10))
	form.Set("callback_url", req.CallbackURL)
	form.Set("redirect_url", req.RedirectURL)
	form.Set("description", truncate(req.Description, maxDescriptionLength))
	if req.Reference != "" {
		form.Set("reference_1_label", "Rujukan")
		form.Set("reference_1", req.Reference)
	}

	endpoint := strings.TrimRight(p.config.BaseURL, "/") + "/bills"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.SetBasicAuth(p.config.APIKey, "")
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create bill: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read bill response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &GatewayError{Provider: ProviderBillplz, StatusCode: resp.StatusCode, Payload: string(body)}
	}

	var bill struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &bill); err != nil {
		return nil, fmt.Errorf("failed to decode bill response: %w", err)
	}
	if bill.ID == "" || bill.URL == "" {
		return nil, &GatewayError{Provider: ProviderBillplz, StatusCode: resp.StatusCode, Payload: string(body)}
	}

	return &PaymentResult{ProviderID: bill.ID, RedirectURL: bill.URL, Provider: ProviderBillplz}, nil
}

// ParseCallback normalizes a form-encoded bill callback, verifying x_signature when a key is set
func (p *BillplzProvider) ParseCallback(form url.Values) (*domain.PaymentNotification, error) {
	if p.config.XSignatureKey != "" {
		if !VerifyXSignature(form, p.config.XSignatureKey) {
			return nil, ErrInvalidSignature
		}
	}
	return ParseBillCallback(form)
}

// ParseBillCallback normalizes the fields of a bill callback. The bill id is only
// required once the bill is settled; unsettled notices are passed on to be ignored.
func ParseBillCallback(form url.Values) (*domain.PaymentNotification, error) {
	n := &domain.PaymentNotification{
		Provider:   ProviderBillplz,
		ProviderID: strings.TrimSpace(form.Get("id")),
		Paid:       strings.EqualFold(form.Get("paid"), "true"),
		State:      form.Get("state"),
		Email:      form.Get("email"),
		Name:       form.Get("name"),
		ReceiptURL: form.Get("url"),
	}
	if raw := form.Get("paid_amount"); raw != "" {
		if amount, err := strconv.ParseInt(raw, 10, 64); err == nil {
			n.PaidAmount = amount
		}
	}
	if n.ProviderID == "" && n.IsSettled() {
		return nil, errors.New("callback is missing the bill id")
	}
	return n, nil
}

// VerifyXSignature checks the HMAC-SHA256 of the sorted key+value pairs joined by "|"
func VerifyXSignature(form url.Values, key string) bool {
	expected := form.Get("x_signature")
	if expected == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(signaturePayload(form)))
	return hmac.Equal([]byte(hex.EncodeToString(mac.Sum(nil))), []byte(expected))
}

// SignXSignature returns the x_signature value of a form (used by tests and tooling)
func SignXSignature(form url.Values, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(signaturePayload(form)))
	return hex.EncodeToString(mac.Sum(nil))
}

func signaturePayload(form url.Values) string {
	parts := make([]string, 0, len(form))
	for k, values := range form {
		if k == "x_signature" {
			continue
		}
		for _, v := range values {
			parts = append(parts, k+v)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
