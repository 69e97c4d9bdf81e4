package apiv1

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
)

// browserCallback handles the success, fail and cancel redirects. All three
// run the same reconciliation; only a validated payment lands on success.
func (s *Server) browserCallback(entry model.CallbackEntry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, paid := s.reconcile(r, entry)
		page := "/payment/failed"
		if paid {
			page = "/payment/success"
		}
		target := strings.TrimRight(s.d.SiteURL, "/") + page
		if orderID != "" {
			target += "?order=" + url.QueryEscape(orderID)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

// IPN acknowledges the gateway's server-to-server notification.
func (s *Server) IPN(w http.ResponseWriter, r *http.Request) {
	_, paid := s.reconcile(r, model.CallbackIPN)
	ack := IPNAck{Status: "invalid"}
	if paid {
		ack.Status = "ok"
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) reconcile(r *http.Request, entry model.CallbackEntry) (string, bool) {
	l := s.logger(r).With().Str("entry", string(entry)).Logger()
	p, err := s.parseCallback(r)
	if err != nil {
		l.Warn().Err(err).Msg("callback rejected")
		return "", false
	}
	out, err := s.d.Reconcile.Reconcile(r.Context(), entry, p)
	orderID := out.OrderID
	if orderID == "" {
		orderID = p.OrderID
	}
	if err != nil {
		l.Info().Err(err).Str("order_id", orderID).Str("code", string(domain.CodeOf(err))).Msg("callback not settled")
		return orderID, false
	}
	return orderID, out.Paid()
}

// parseCallback accepts form-encoded or JSON bodies; query parameters are
// merged in for gateways that redirect with GET-style URLs.
func (s *Server) parseCallback(r *http.Request) (model.CallbackPayload, error) {
	fields := map[string]string{}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		raw := map[string]any{}
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return model.CallbackPayload{}, fmt.Errorf("%w: %v", domain.ErrUnparseablePayload, err)
		}
		for k, v := range raw {
			switch t := v.(type) {
			case string:
				fields[k] = t
			case json.Number:
				fields[k] = t.String()
			case bool:
				fields[k] = fmt.Sprint(t)
			}
		}
	default:
		r.Body = io.NopCloser(io.LimitReader(r.Body, maxBodyBytes))
		if err := r.ParseForm(); err != nil {
			return model.CallbackPayload{}, fmt.Errorf("%w: %v", domain.ErrUnparseablePayload, err)
		}
		for k := range r.Form {
			fields[k] = r.Form.Get(k)
		}
	}
	for k, v := range r.URL.Query() {
		if _, ok := fields[k]; !ok && len(v) > 0 {
			fields[k] = v[0]
		}
	}

	f := callbackForm{
		TranID:         strings.TrimSpace(fields["tran_id"]),
		ValID:          strings.TrimSpace(fields["val_id"]),
		Amount:         strings.TrimSpace(fields["amount"]),
		Currency:       strings.TrimSpace(fields["currency"]),
		CurrencyAmount: strings.TrimSpace(fields["currency_amount"]),
		CurrencyType:   strings.TrimSpace(fields["currency_type"]),
		Status:         strings.TrimSpace(fields["status"]),
		OrderID:        strings.TrimSpace(fields["value_a"]),
		UserID:         strings.TrimSpace(fields["value_b"]),
		VerifySign:     fields["verify_sign"],
		VerifyKey:      fields["verify_key"],
	}
	if err := s.validate.Struct(f); err != nil {
		return model.CallbackPayload{}, fmt.Errorf("%w: %v", domain.ErrUnparseablePayload, err)
	}
	return model.CallbackPayload{
		TranID:         f.TranID,
		ValID:          f.ValID,
		Amount:         f.Amount,
		Currency:       f.Currency,
		CurrencyAmount: f.CurrencyAmount,
		CurrencyType:   f.CurrencyType,
		Status:         f.Status,
		OrderID:        f.OrderID,
		UserID:         f.UserID,
		VerifySign:     f.VerifySign,
		VerifyKey:      f.VerifyKey,
		Fields:         fields,
	}, nil
}
