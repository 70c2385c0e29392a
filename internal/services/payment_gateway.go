package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/config"
)

// PaymentGateway is the external payment provider.
// Errors are opaque; no call is retried.
type PaymentGateway interface {
	// CreateOrder opens a provider-side order and returns its id
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)
	// VerifySignature checks a checkout callback really came from the provider
	VerifySignature(orderID, paymentID, signature string) error
	// Refund returns amount (minor units) of a captured payment
	Refund(ctx context.Context, paymentID string, amount int64) error
	// KeyID is the public key the checkout client opens the order with
	KeyID() string
}

// NewPaymentGateway builds the gateway selected by PAYMENT_MODE
func NewPaymentGateway(cfg *config.PaymentConfig, logger *logrus.Logger) PaymentGateway {
	if cfg.Mode == "razorpay" {
		return NewRazorpayGateway(cfg, logger)
	}
	return NewSandboxGateway(cfg.KeyID, cfg.KeySecret, logger)
}

// ComputeSignature is the checkout callback signature:
// hex(HMAC-SHA256(secret, order_id + "|" + payment_id))
func ComputeSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret, orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" || signature == "" {
		return fmt.Errorf("order id, payment id and signature are required")
	}
	expected := ComputeSignature(secret, orderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return fmt.Errorf("signature mismatch for order %s", orderID)
	}
	return nil
}

// ============================================================================
// RAZORPAY
// ============================================================================

// RazorpayGateway talks to the Razorpay REST API
type RazorpayGateway struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// razorpayOrderRequest is the body of POST /orders
type razorpayOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

// razorpayOrderResponse is the subset of the order entity we read
type razorpayOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

// razorpayRefundRequest is the body of POST /payments/{id}/refund
type razorpayRefundRequest struct {
	Amount int64 `json:"amount"`
}

// razorpayRefundResponse is the subset of the refund entity we read
type razorpayRefundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// razorpayErrorResponse wraps API errors
type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// NewRazorpayGateway creates a new Razorpay client
func NewRazorpayGateway(cfg *config.PaymentConfig, logger *logrus.Logger) *RazorpayGateway {
	return &RazorpayGateway{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// KeyID returns the public key id
func (g *RazorpayGateway) KeyID() string {
	return g.config.KeyID
}

// CreateOrder opens an auto-capture order
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	request := razorpayOrderRequest{
		Amount:         amount,
		Currency:       currency,
		Receipt:        receipt,
		PaymentCapture: 1,
	}

	g.logger.WithFields(logrus.Fields{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}).Info("Creating Razorpay order")

	var order razorpayOrderResponse
	if err := g.post(ctx, "/orders", request, &order); err != nil {
		return "", err
	}
	if order.ID == "" {
		return "", fmt.Errorf("payment gateway returned an order without id")
	}

	g.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"status":   order.Status,
	}).Info("Razorpay order created")

	return order.ID, nil
}

// VerifySignature checks the checkout callback HMAC
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) error {
	return verifySignature(g.config.KeySecret, orderID, paymentID, signature)
}

// Refund issues a full refund of a captured payment
func (g *RazorpayGateway) Refund(ctx context.Context, paymentID string, amount int64) error {
	if paymentID == "" {
		return fmt.Errorf("payment id is required for refund")
	}

	var refund razorpayRefundResponse
	path := fmt.Sprintf("/payments/%s/refund", paymentID)
	if err := g.post(ctx, path, razorpayRefundRequest{Amount: amount}, &refund); err != nil {
		return err
	}

	g.logger.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"refund_id":  refund.ID,
		"status":     refund.Status,
		"amount":     amount,
	}).Info("Razorpay refund issued")

	return nil
}

func (g *RazorpayGateway) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(g.config.APIURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.config.KeyID, g.config.KeySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WithError(err).WithField("endpoint", path).Error("Failed to call Razorpay")
		return fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr razorpayErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Description != "" {
			return fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, apiErr.Error.Description)
		}
		return fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// ============================================================================
// SANDBOX
// ============================================================================

// SandboxGateway is an offline gateway for development and tests.
// Orders are local ids, refunds always succeed, signatures use the same HMAC.
type SandboxGateway struct {
	keyID  string
	secret string
	logger *logrus.Logger
}

// NewSandboxGateway creates a sandbox gateway
func NewSandboxGateway(keyID, secret string, logger *logrus.Logger) *SandboxGateway {
	if keyID == "" {
		keyID = "rzp_sandbox"
	}
	if secret == "" {
		secret = "sandbox-secret"
	}
	return &SandboxGateway{keyID: keyID, secret: secret, logger: logger}
}

// KeyID returns the sandbox key id
func (g *SandboxGateway) KeyID() string {
	return g.keyID
}

// CreateOrder returns a fresh sandbox order id
func (g *SandboxGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}
	orderID := "order_sbx_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]

	g.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}).Info("Sandbox order created")

	return orderID, nil
}

// VerifySignature checks the HMAC with the sandbox secret
func (g *SandboxGateway) VerifySignature(orderID, paymentID, signature string) error {
	return verifySignature(g.secret, orderID, paymentID, signature)
}

// Refund logs and succeeds
func (g *SandboxGateway) Refund(ctx context.Context, paymentID string, amount int64) error {
	if paymentID == "" {
		return fmt.Errorf("payment id is required for refund")
	}
	g.logger.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"amount":     amount,
	}).Info("Sandbox refund issued")
	return nil
}
