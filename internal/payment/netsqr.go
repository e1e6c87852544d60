package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"storefront/config"
	"storefront/internal/models"
)

// NetsQRAdapter drives the NETS QR sandbox gateway. The rail is
// poll-based: CreateIntent requests a QR code, the shopper scans it,
// and the caller polls CheckStatus until the gateway reports a
// terminal state. NETS has no refund API here, so refunds on this rail
// must settle to store credit.
type NetsQRAdapter struct {
	cfg    config.NetsConfig
	client *http.Client
	logger *zap.Logger
}

func NewNetsQRAdapter(cfg config.NetsConfig, logger *zap.Logger) *NetsQRAdapter {
	return &NetsQRAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: 20 * time.Second},
		logger: logger,
	}
}

// Fixed sandbox transaction id required by the gateway.
const netsSandboxTxnID = "sandbox_nets|m|8ff8e5b6-d43e-4786-8ac5-7accf8c5bd9b"

type netsResult struct {
	Result struct {
		Data struct {
			TxnRetrievalRef string `json:"txn_retrieval_ref"`
			QRCode          string `json:"qr_code"`
			ResponseCode    string `json:"response_code"`
			TxnStatus       int    `json:"txn_status"`
			NetworkStatus   int    `json:"network_status"`
			ErrorMessage    string `json:"error_message"`
			Instruction     string `json:"instruction"`
		} `json:"data"`
	} `json:"result"`
}

func (a *NetsQRAdapter) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if a.cfg.APIKey == "" || a.cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: nets credentials not configured", ErrProviderUnavailable)
	}

	payload := map[string]interface{}{
		"txn_id":         netsSandboxTxnID,
		"amt_in_dollars": models.FormatAmount(req.Amount),
		"notify_mobile":  0,
	}

	var res netsResult
	if err := a.do(ctx, "/api/v1/common/payments/nets-qr/request", payload, &res); err != nil {
		return nil, err
	}

	data := res.Result.Data
	if data.ResponseCode != "00" || data.TxnStatus != 1 || data.QRCode == "" {
		msg := data.ErrorMessage
		if msg == "" {
			msg = "QR code generation failed"
		}
		return nil, &ProviderError{
			Provider: "nets",
			Code:     data.ResponseCode,
			Message:  msg,
			HTTPCode: http.StatusBadGateway,
		}
	}

	a.logger.Info("NETS QR generated",
		zap.String("retrieval_ref", data.TxnRetrievalRef),
		zap.Int64("amount", req.Amount))

	return &Intent{
		ProviderRef: data.TxnRetrievalRef,
		QRPayload:   "data:image/png;base64," + data.QRCode,
	}, nil
}

func (a *NetsQRAdapter) CheckStatus(ctx context.Context, providerRef string) (Status, error) {
	return a.Query(ctx, providerRef, false)
}

// Query polls the transaction status. timedOut marks the terminal poll
// made after the client-side countdown expires, which tells the gateway
// to void the QR code.
func (a *NetsQRAdapter) Query(ctx context.Context, providerRef string, timedOut bool) (Status, error) {
	frontendTimeout := 0
	if timedOut {
		frontendTimeout = 1
	}

	payload := map[string]interface{}{
		"txn_retrieval_ref":       providerRef,
		"frontend_timeout_status": frontendTimeout,
	}

	var res netsResult
	if err := a.do(ctx, "/api/v1/common/payments/nets-qr/query", payload, &res); err != nil {
		return StatusFailed, err
	}

	data := res.Result.Data
	switch {
	case data.ResponseCode == "00" && data.TxnStatus == 1:
		return StatusCompleted, nil
	case data.TxnStatus == 2 || timedOut:
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

// Refund is unsupported on this rail. The refund service must route the
// money to store credit instead.
func (a *NetsQRAdapter) Refund(ctx context.Context, providerRef string, amount int64) error {
	return fmt.Errorf("%w: nets qr", ErrRefundUnsupported)
}

func (a *NetsQRAdapter) do(ctx context.Context, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode nets request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIBase+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build nets request: %w", err)
	}
	req.Header.Set("api-key", a.cfg.APIKey)
	req.Header.Set("project-id", a.cfg.ProjectID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read nets response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &ProviderError{
			Provider: "nets",
			Message:  string(body),
			HTTPCode: resp.StatusCode,
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode nets response: %w", err)
	}
	return nil
}
