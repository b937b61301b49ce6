package payment

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

const maxItemNameLen = 50

// MidtransConfig is passed explicitly at construction; the gateway keeps no
// package-level state.
type MidtransConfig struct {
	ServerKey       string
	ClientKey       string
	Environment     string // sandbox, production
	FinishURL       string
	Timeout         time.Duration
	VerifySignature bool
	MockMode        bool
}

type MidtransGateway struct {
	snap            snap.Client
	core            coreapi.Client
	serverKey       string
	finishURL       string
	timeout         time.Duration
	verifySignature bool
	mockMode        bool
}

var _ Gateway = (*MidtransGateway)(nil)

func NewMidtransGateway(cfg MidtransConfig) (*MidtransGateway, error) {
	if cfg.MockMode {
		log.Printf("[payment][gateway] mock mode enabled")
		return &MidtransGateway{finishURL: cfg.FinishURL, mockMode: true}, nil
	}

	if cfg.ServerKey == "" {
		log.Printf("[payment][gateway] missing MIDTRANS_SERVER_KEY")
		return nil, ErrGatewayNotConfigured
	}

	env := midtrans.Sandbox
	if strings.EqualFold(cfg.Environment, "production") {
		env = midtrans.Production
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := midtrans.GetHttpClient(env)
	httpClient.HttpClient = &http.Client{Timeout: timeout}

	g := &MidtransGateway{
		serverKey:       cfg.ServerKey,
		finishURL:       cfg.FinishURL,
		timeout:         timeout,
		verifySignature: cfg.VerifySignature,
	}
	g.snap.New(cfg.ServerKey, env)
	g.snap.HttpClient = httpClient
	g.core.New(cfg.ServerKey, env)
	g.core.HttpClient = httpClient

	log.Printf("[payment][gateway] Midtrans client initialized env=%s timeout=%s", cfg.Environment, timeout)
	return g, nil
}

func (g *MidtransGateway) CreateTransaction(ctx context.Context, req TransactionRequest) (*Transaction, error) {
	if g == nil {
		return nil, ErrGatewayNotConfigured
	}
	log.Printf("[payment][gateway] create start order_id=%s amount=%s items=%d", req.OrderID, req.Amount.StringFixed(2), len(req.Items))

	if g.mockMode {
		tx := &Transaction{
			Token:       "mock-" + req.OrderID,
			RedirectURL: g.finishURL + "?order_id=" + req.OrderID,
		}
		log.Printf("[payment][gateway] mock create success order_id=%s", req.OrderID)
		return tx, nil
	}

	snapReq := buildSnapRequest(req, g.finishURL)

	resp, err := withTimeout(ctx, g.timeout, func() (*snap.Response, error) {
		resp, mErr := g.snap.CreateTransaction(snapReq)
		if mErr != nil {
			return nil, fmt.Errorf("snap create transaction: %s (status %d)", mErr.GetMessage(), mErr.GetStatusCode())
		}
		return resp, nil
	})
	if err != nil {
		log.Printf("[payment][gateway] create failed order_id=%s err=%v", req.OrderID, err)
		return nil, err
	}

	log.Printf("[payment][gateway] create success order_id=%s", req.OrderID)
	return &Transaction{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// buildSnapRequest maps req onto a Snap request. Snap rejects item details
// whose rounded sum differs from the gross amount, so items are sent only
// when the two agree.
func buildSnapRequest(req TransactionRequest, finishURL string) *snap.Request {
	gross := req.Amount.Round(0).IntPart()
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
	}

	if len(req.Items) > 0 {
		items := make([]midtrans.ItemDetails, 0, len(req.Items))
		var sum int64
		for _, it := range req.Items {
			price := it.Price.Round(0).IntPart()
			sum += price * int64(it.Quantity)
			items = append(items, midtrans.ItemDetails{
				ID:    it.ID,
				Name:  truncate(it.Name, maxItemNameLen),
				Price: price,
				Qty:   int32(it.Quantity),
			})
		}
		if sum == gross {
			snapReq.Items = &items
		} else {
			log.Printf("[payment][gateway] item details dropped order_id=%s item_sum=%d gross=%d", req.OrderID, sum, gross)
		}
	}
	if finishURL != "" {
		snapReq.Callbacks = &snap.Callbacks{Finish: finishURL}
	}
	return snapReq
}

func (g *MidtransGateway) TransactionStatus(ctx context.Context, orderID string) (*Notification, error) {
	if g == nil {
		return nil, ErrGatewayNotConfigured
	}
	if g.mockMode {
		return &Notification{OrderID: orderID, TransactionStatus: "pending"}, nil
	}

	resp, err := withTimeout(ctx, g.timeout, func() (*coreapi.TransactionStatusResponse, error) {
		resp, mErr := g.core.CheckTransaction(orderID)
		if mErr != nil {
			return nil, fmt.Errorf("core check transaction: %s (status %d)", mErr.GetMessage(), mErr.GetStatusCode())
		}
		return resp, nil
	})
	if err != nil {
		log.Printf("[payment][gateway] status failed order_id=%s err=%v", orderID, err)
		return nil, err
	}

	return &Notification{
		OrderID:           resp.OrderID,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		StatusCode:        resp.StatusCode,
		GrossAmount:       resp.GrossAmount,
		SignatureKey:      resp.SignatureKey,
		PaymentType:       resp.PaymentType,
		TransactionID:     resp.TransactionID,
		TransactionTime:   resp.TransactionTime,
	}, nil
}

// VerifySignature accepts every notification when verification is disabled
// or the gateway runs in mock mode.
func (g *MidtransGateway) VerifySignature(n Notification) bool {
	if g == nil || g.mockMode || !g.verifySignature {
		return true
	}
	return VerifySignature(n, g.serverKey)
}

// withTimeout bounds fn by timeout and ctx. The SDK has no context support,
// so an abandoned call finishes in the background and its result is dropped.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrGatewayTimeout, ctx.Err())
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
