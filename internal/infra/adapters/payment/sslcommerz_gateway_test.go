//go:build !integration

package payment

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub-billing/internal/domain/ports/adapter"
)

func newStubGateway(t *testing.T, h http.HandlerFunc) *SSLCommerzGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g, err := NewSSLCommerzGateway("learnhub_test", "secret@ssl", true, 2*time.Second)
	require.NoError(t, err)
	g.SetBaseURL(srv.URL)
	return g
}

func TestNewSSLCommerzGateway_RequiresCredentials(t *testing.T) {
	_, err := NewSSLCommerzGateway("", "pw", true, 0)
	assert.Error(t, err)
	_, err = NewSSLCommerzGateway("id", "", true, 0)
	assert.Error(t, err)
}

func TestSSLCommerz_InitSession(t *testing.T) {
	req := adapter.SessionRequest{
		TranID:      "TXN01HV6X",
		Amount:      decimal.NewFromInt(499),
		Currency:    "BDT",
		ProductName: "HSC Physics",
		SuccessURL:  "https://api.test/success",
		FailURL:     "https://api.test/fail",
		CancelURL:   "https://api.test/cancel",
		IPNURL:      "https://api.test/ipn",
		Customer:    adapter.Customer{Name: "Rahim", Email: "r@example.com", Phone: "01712345678"},
		OrderID:     "01HV6X",
		UserID:      "user-1",
		CourseID:    "course-1",
		PlanID:      "lifetime",
	}

	t.Run("success returns the hosted page", func(t *testing.T) {
		g := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, sslcInitPath, r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "learnhub_test", r.PostForm.Get("store_id"))
			assert.Equal(t, "499.00", r.PostForm.Get("total_amount"))
			assert.Equal(t, "BDT", r.PostForm.Get("currency"))
			assert.Equal(t, "TXN01HV6X", r.PostForm.Get("tran_id"))
			assert.Equal(t, "https://api.test/ipn", r.PostForm.Get("ipn_url"))
			assert.Equal(t, "01HV6X", r.PostForm.Get("value_a"))
			assert.Equal(t, "lifetime", r.PostForm.Get("value_d"))
			assert.Equal(t, "01712345678", r.PostForm.Get("cus_phone"))
			_, _ = w.Write([]byte(`{"status":"SUCCESS","sessionkey":"SK1","GatewayPageURL":"https://sandbox.sslcommerz.com/EasyCheckOut/SK1"}`))
		})
		sess, err := g.InitSession(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "SK1", sess.SessionKey)
		assert.Equal(t, "https://sandbox.sslcommerz.com/EasyCheckOut/SK1", sess.RedirectURL)
	})

	t.Run("refusal carries the reason", func(t *testing.T) {
		g := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"FAILED","failedreason":"Store Credential Error Or Store is De-active"}`))
		})
		_, err := g.InitSession(context.Background(), req)
		assert.ErrorContains(t, err, "Store Credential Error")
	})

	t.Run("http error", func(t *testing.T) {
		g := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := g.InitSession(context.Background(), req)
		assert.Error(t, err)
	})
}

func TestSSLCommerz_Validate(t *testing.T) {
	t.Run("parses a valid record", func(t *testing.T) {
		g := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, sslcValidatePath, r.URL.Path)
			assert.Equal(t, "VAL-1", r.URL.Query().Get("val_id"))
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			_, _ = w.Write([]byte(`{"status":"VALID","tran_id":"TXN1","val_id":"VAL-1","amount":"499.00","currency":"BDT","card_type":"VISA-Dutch Bangla","bank_tran_id":"BT1","currency_type":"BDT","currency_amount":"499.00"}`))
		})
		v, err := g.Validate(context.Background(), "VAL-1")
		require.NoError(t, err)
		assert.Equal(t, "VALID", v.Status)
		assert.Equal(t, "TXN1", v.TranID)
		assert.True(t, v.Amount.Equal(decimal.NewFromInt(499)))
		assert.Equal(t, "BDT", v.Currency)
		assert.Equal(t, "BT1", v.BankTranID)
		assert.NotEmpty(t, v.Raw)
	})

	t.Run("prefers the session currency", func(t *testing.T) {
		g := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"VALIDATED","tran_id":"TXN1","val_id":"VAL-1","amount":"6050.00","currency":"BDT","currency_type":"USD","currency_amount":50}`))
		})
		v, err := g.Validate(context.Background(), "VAL-1")
		require.NoError(t, err)
		assert.Equal(t, "USD", v.Currency)
		assert.True(t, v.Amount.Equal(decimal.NewFromInt(50)))
	})

	t.Run("negative verdict is not an error", func(t *testing.T) {
		g := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"INVALID_TRANSACTION"}`))
		})
		v, err := g.Validate(context.Background(), "VAL-X")
		require.NoError(t, err)
		assert.Equal(t, "INVALID_TRANSACTION", v.Status)
	})

	t.Run("malformed body is an error", func(t *testing.T) {
		g := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
		})
		_, err := g.Validate(context.Background(), "VAL-1")
		assert.Error(t, err)
	})

	t.Run("timeout is an error", func(t *testing.T) {
		g := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := g.Validate(ctx, "VAL-1")
		assert.Error(t, err)
	})
}

func TestSSLCommerz_QueryByTranID(t *testing.T) {
	g := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sslcQueryPath, r.URL.Path)
		assert.Equal(t, "TXN1", r.URL.Query().Get("tran_id"))
		_, _ = w.Write([]byte(`{"APIConnect":"DONE","no_of_trans_found":2,"element":[{"val_id":"","status":"FAILED","tran_id":"TXN1","amount":"499.00"},{"val_id":"VAL-9","status":"valid","tran_id":"TXN1","amount":499}]}`))
	})
	txs, err := g.QueryByTranID(context.Background(), "TXN1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "VALID", txs[1].Status)
	assert.Equal(t, "VAL-9", txs[1].ValID)
	assert.True(t, txs[1].Amount.Equal(decimal.NewFromInt(499)))
}

func TestSSLCommerz_VerifyCallback(t *testing.T) {
	g, err := NewSSLCommerzGateway("learnhub_test", "secret@ssl", true, 0)
	require.NoError(t, err)

	pw := md5.Sum([]byte("secret@ssl"))
	payload := "amount=499.00&status=VALID&store_passwd=" + hex.EncodeToString(pw[:]) + "&tran_id=TXN1&val_id=VAL-1"
	sum := md5.Sum([]byte(payload))

	fields := map[string]string{
		"tran_id":     "TXN1",
		"val_id":      "VAL-1",
		"amount":      "499.00",
		"status":      "VALID",
		"verify_key":  "tran_id,val_id,amount,status",
		"verify_sign": hex.EncodeToString(sum[:]),
	}
	assert.True(t, g.VerifyCallback(fields))

	fields["amount"] = "1.00"
	assert.False(t, g.VerifyCallback(fields))

	assert.False(t, g.VerifyCallback(map[string]string{"tran_id": "TXN1"}))
}

func TestNoopPaymentGateway(t *testing.T) {
	ctx := context.Background()
	g := NewNoopPaymentGateway()
	sess, err := g.InitSession(ctx, adapter.SessionRequest{TranID: "TXN1", Amount: decimal.NewFromInt(499), Currency: "BDT"})
	require.NoError(t, err)
	assert.Contains(t, sess.RedirectURL, "TXN1")

	v, err := g.Validate(ctx, "VAL-TXN1")
	require.NoError(t, err)
	assert.Equal(t, "VALID", v.Status)
	assert.True(t, v.Amount.Equal(decimal.NewFromInt(499)))

	v, err = g.Validate(ctx, "VAL-UNKNOWN")
	require.NoError(t, err)
	assert.NotEqual(t, "VALID", v.Status)

	txs, err := g.QueryByTranID(ctx, "TXN1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "VAL-TXN1", txs[0].ValID)
}
