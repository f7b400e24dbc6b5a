// Package erp is a client for the Protheus REST endpoints used by the intake
// pipeline: purchase order creation and registry existence lookups.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const createOrderPath = "/rest/PRODCHECK/createPedidoCompra"

// maxBodyBytes caps how much of an error response is kept for the operator.
const maxBodyBytes = 64 << 10

var (
	// ErrTimeout means the ERP did not answer within the client timeout.
	ErrTimeout = errors.New("erp request timed out")

	// ErrConnection means the ERP could not be reached.
	ErrConnection = errors.New("erp connection failed")
)

// APIError is a response from the ERP other than the expected success.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("erp returned status %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL            string
	TenantID           string
	Timeout            time.Duration
	Username           string
	Password           string
	ProductLookupPath  string
	SupplierLookupPath string
}

// Client talks to one Protheus instance.
type Client struct {
	baseURL      string
	tenantID     string
	username     string
	password     string
	productPath  string
	supplierPath string
	http         *http.Client
}

// New returns a Client. A zero Timeout means 30 seconds.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		tenantID:     cfg.TenantID,
		username:     cfg.Username,
		password:     cfg.Password,
		productPath:  cfg.ProductLookupPath,
		supplierPath: cfg.SupplierLookupPath,
		http:         &http.Client{Timeout: timeout},
	}
}

// TenantID returns the default branch sent in the tenantid header.
func (c *Client) TenantID() string {
	return c.tenantID
}

// OrderItem is one purchase order line.
type OrderItem struct {
	Product  string  `json:"produto"`
	Quantity float64 `json:"quantidade"`
	Price    float64 `json:"preco"`
	Total    float64 `json:"total"`
}

// PurchaseOrder is the createPedidoCompra request body.
type PurchaseOrder struct {
	Supplier     string      `json:"fornecedor"`
	Store        string      `json:"loja"`
	PaymentTerms string      `json:"condicao_pagamento"`
	IssueDate    string      `json:"data_emissao"` // DD/MM/YYYY
	Items        []OrderItem `json:"itens"`
}

// OrderResponse is the accepted order.
type OrderResponse struct {
	Number string `json:"numero_pedido"`
}

// FormatIssueDate renders t the way the ERP expects order dates.
func FormatIssueDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// CreatePurchaseOrder posts order for the given branch (tenant). Only HTTP 200
// with a numero_pedido counts as success.
func (c *Client) CreatePurchaseOrder(ctx context.Context, tenant string, order PurchaseOrder) (*OrderResponse, error) {
	if tenant == "" {
		tenant = c.tenantID
	}

	body, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createOrderPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("tenantid", tenant)

	status, respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{StatusCode: status, Body: string(respBody)}
	}

	number, err := orderNumber(respBody)
	if err != nil {
		return nil, &APIError{StatusCode: status, Body: string(respBody)}
	}
	return &OrderResponse{Number: number}, nil
}

// orderNumber extracts numero_pedido, which some Protheus builds send as a number.
func orderNumber(body []byte) (string, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	switch n := payload["numero_pedido"].(type) {
	case string:
		if n != "" {
			return n, nil
		}
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	}
	return "", errors.New("response has no numero_pedido")
}

// ProductExists reports whether code is registered under group.
// A 404 is "not found"; any other non-200 status is an error.
func (c *Client) ProductExists(ctx context.Context, code, group string) (bool, error) {
	q := url.Values{"codigo": {code}}
	if group != "" {
		q.Set("grupo", group)
	}
	return c.exists(ctx, c.productPath, q)
}

// SupplierExists reports whether the supplier code is registered.
func (c *Client) SupplierExists(ctx context.Context, code string) (bool, error) {
	return c.exists(ctx, c.supplierPath, url.Values{"codigo": {code}})
}

func (c *Client) exists(ctx context.Context, path string, q url.Values) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("tenantid", c.tenantID)

	status, body, err := c.do(req)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &APIError{StatusCode: status, Body: string(body)}
	}
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, classify(err)
	}
	return resp.StatusCode, body, nil
}

// classify maps transport failures onto ErrTimeout or ErrConnection.
// Caller cancellation is returned unchanged.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
