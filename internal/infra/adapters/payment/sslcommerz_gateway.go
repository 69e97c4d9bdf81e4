// File: internal/infra/adapters/payment/sslcommerz_gateway.go
package payment

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"learnhub-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*SSLCommerzGateway)(nil)

const (
	sslcLiveBase    = "https://securepay.sslcommerz.com"
	sslcSandboxBase = "https://sandbox.sslcommerz.com"

	sslcInitPath     = "/gwprocess/v4/api.php"
	sslcValidatePath = "/validator/api/validationserverAPI.php"
	sslcQueryPath    = "/validator/api/merchantTransIDvalidationAPI.php"

	maxResponseBytes = 1 << 20
)

// SSLCommerzGateway implements adapter.PaymentGateway against the SSLCommerz
// v4 hosted checkout and validation APIs.
type SSLCommerzGateway struct {
	storeID       string
	storePassword string
	baseURL       string
	client        *http.Client
}

func NewSSLCommerzGateway(storeID, storePassword string, sandbox bool, timeout time.Duration) (*SSLCommerzGateway, error) {
	if storeID == "" || storePassword == "" {
		return nil, errors.New("sslcommerz: store id and password required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	base := sslcLiveBase
	if sandbox {
		base = sslcSandboxBase
	}
	return &SSLCommerzGateway{
		storeID:       storeID,
		storePassword: storePassword,
		baseURL:       base,
		client:        &http.Client{Timeout: timeout},
	}, nil
}

// SetBaseURL points the gateway at another host, e.g. a local stub.
func (g *SSLCommerzGateway) SetBaseURL(u string) {
	g.baseURL = strings.TrimRight(u, "/")
}

func (g *SSLCommerzGateway) Name() string { return "sslcommerz" }

// InitSession registers the transaction and returns the hosted page URL.
func (g *SSLCommerzGateway) InitSession(ctx context.Context, req adapter.SessionRequest) (*adapter.Session, error) {
	form := url.Values{}
	form.Set("store_id", g.storeID)
	form.Set("store_passwd", g.storePassword)
	form.Set("total_amount", req.Amount.StringFixed(2))
	form.Set("currency", req.Currency)
	form.Set("tran_id", req.TranID)
	form.Set("success_url", req.SuccessURL)
	form.Set("fail_url", req.FailURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("ipn_url", req.IPNURL)
	form.Set("cus_name", req.Customer.Name)
	form.Set("cus_email", req.Customer.Email)
	form.Set("cus_phone", req.Customer.Phone)
	form.Set("cus_add1", "Dhaka")
	form.Set("cus_city", "Dhaka")
	form.Set("cus_country", "Bangladesh")
	form.Set("shipping_method", "NO")
	form.Set("num_of_item", "1")
	form.Set("product_name", req.ProductName)
	form.Set("product_category", "Education")
	form.Set("product_profile", "non-physical-goods")
	form.Set("value_a", req.OrderID)
	form.Set("value_b", req.UserID)
	form.Set("value_c", req.CourseID)
	form.Set("value_d", req.PlanID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+sslcInitPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := g.do(httpReq)
	if err != nil {
		return nil, err
	}
	var out struct {
		Status         string `json:"status"`
		FailedReason   string `json:"failedreason"`
		SessionKey     string `json:"sessionkey"`
		GatewayPageURL string `json:"GatewayPageURL"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("sslcommerz init: decode: %w", err)
	}
	if !strings.EqualFold(out.Status, "SUCCESS") || out.GatewayPageURL == "" {
		reason := out.FailedReason
		if reason == "" {
			reason = "status " + out.Status
		}
		return nil, fmt.Errorf("sslcommerz init refused: %s", reason)
	}
	return &adapter.Session{SessionKey: out.SessionKey, RedirectURL: out.GatewayPageURL}, nil
}

// Validate calls the order validation API for valID.
func (g *SSLCommerzGateway) Validate(ctx context.Context, valID string) (*adapter.Validation, error) {
	q := url.Values{}
	q.Set("val_id", valID)
	q.Set("store_id", g.storeID)
	q.Set("store_passwd", g.storePassword)
	q.Set("format", "json")
	q.Set("v", "1")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+sslcValidatePath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, err := g.do(httpReq)
	if err != nil {
		return nil, err
	}
	var out validationResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("sslcommerz validate: decode: %w", err)
	}
	if out.Status == "" {
		return nil, errors.New("sslcommerz validate: response without status")
	}
	amount, currency, err := out.orderAmount()
	if err != nil {
		return nil, fmt.Errorf("sslcommerz validate: %w", err)
	}
	return &adapter.Validation{
		Status:     strings.ToUpper(out.Status),
		TranID:     out.TranID,
		ValID:      out.ValID,
		Amount:     amount,
		Currency:   currency,
		CardType:   out.CardType,
		BankTranID: out.BankTranID,
		Raw:        body,
	}, nil
}

// QueryByTranID calls the transaction query API.
func (g *SSLCommerzGateway) QueryByTranID(ctx context.Context, tranID string) ([]adapter.Transaction, error) {
	q := url.Values{}
	q.Set("tran_id", tranID)
	q.Set("store_id", g.storeID)
	q.Set("store_passwd", g.storePassword)
	q.Set("format", "json")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+sslcQueryPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, err := g.do(httpReq)
	if err != nil {
		return nil, err
	}
	var out struct {
		APIConnect string `json:"APIConnect"`
		Element    []struct {
			ValID    string     `json:"val_id"`
			Status   string     `json:"status"`
			TranID   string     `json:"tran_id"`
			Amount   flexString `json:"amount"`
			Currency string     `json:"currency"`
		} `json:"element"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("sslcommerz query: decode: %w", err)
	}
	if out.APIConnect != "" && !strings.EqualFold(out.APIConnect, "DONE") {
		return nil, fmt.Errorf("sslcommerz query: api %s", out.APIConnect)
	}
	txs := make([]adapter.Transaction, 0, len(out.Element))
	for _, e := range out.Element {
		amt, _ := decimal.NewFromString(string(e.Amount))
		txs = append(txs, adapter.Transaction{
			Status: strings.ToUpper(e.Status),
			TranID: e.TranID,
			ValID:  e.ValID,
			Amount: amt,
		})
	}
	return txs, nil
}

// VerifyCallback recomputes verify_sign over the fields named by verify_key.
func (g *SSLCommerzGateway) VerifyCallback(fields map[string]string) bool {
	sign, keys := fields["verify_sign"], fields["verify_key"]
	if sign == "" || keys == "" {
		return false
	}
	pwHash := md5.Sum([]byte(g.storePassword))
	signed := map[string]string{"store_passwd": hex.EncodeToString(pwHash[:])}
	for _, k := range strings.Split(keys, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			signed[k] = fields[k]
		}
	}
	names := make([]string, 0, len(signed))
	for k := range signed {
		names = append(names, k)
	}
	sort.Strings(names)
	var b bytes.Buffer
	for i, k := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(signed[k])
	}
	sum := md5.Sum(b.Bytes())
	return strings.EqualFold(hex.EncodeToString(sum[:]), sign)
}

func (g *SSLCommerzGateway) do(req *http.Request) ([]byte, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sslcommerz http %d", resp.StatusCode)
	}
	return body, nil
}

type validationResponse struct {
	Status         string     `json:"status"`
	TranID         string     `json:"tran_id"`
	ValID          string     `json:"val_id"`
	Amount         flexString `json:"amount"`
	Currency       string     `json:"currency"`
	CurrencyType   string     `json:"currency_type"`
	CurrencyAmount flexString `json:"currency_amount"`
	CardType       string     `json:"card_type"`
	BankTranID     string     `json:"bank_tran_id"`
}

// orderAmount prefers currency_type/currency_amount, which carry the amount
// in the currency the session was opened with.
func (v validationResponse) orderAmount() (decimal.Decimal, string, error) {
	raw, cur := string(v.Amount), v.Currency
	if v.CurrencyType != "" && v.CurrencyAmount != "" {
		raw, cur = string(v.CurrencyAmount), v.CurrencyType
	}
	if raw == "" {
		return decimal.Zero, cur, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("amount %q: %w", raw, err)
	}
	return d, strings.ToUpper(cur), nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}
