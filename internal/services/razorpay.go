package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	razorpay "github.com/razorpay/razorpay-go"
	rzputils "github.com/razorpay/razorpay-go/utils"
)

var ErrBadWebhookSignature = errors.New("invalid webhook signature")

type CheckoutRequest struct {
	ReferenceID   string
	Amount        float64
	Currency      string
	Description   string
	CustomerName  string
	CustomerEmail string
	CallbackURL   string
	Notes         map[string]string
}

type Checkout struct {
	ID  string `json:"paymentLinkId"`
	URL string `json:"url"`
}

type CheckoutStatus struct {
	Paid        bool
	ReferenceID string
}

type WebhookEvent struct {
	Event       string
	CheckoutID  string
	ReferenceID string
}

// PaymentGateway is the checkout collaborator.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	CheckoutStatus(ctx context.Context, id string) (*CheckoutStatus, error)
	// ParseWebhook verifies the signature over body before decoding it.
	ParseWebhook(body []byte, signature string) (*WebhookEvent, error)
}

// RazorpayGateway implements PaymentGateway with Razorpay payment links.
type RazorpayGateway struct {
	client        *razorpay.Client
	webhookSecret string
}

func NewRazorpayGateway(keyID, keySecret, webhookSecret string) *RazorpayGateway {
	return &RazorpayGateway{
		client:        razorpay.NewClient(keyID, keySecret),
		webhookSecret: webhookSecret,
	}
}

func (g *RazorpayGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	// Razorpay amounts are integers in the currency's smallest unit.
	data := map[string]interface{}{
		"amount":       int64(math.Round(req.Amount * 100)),
		"currency":     req.Currency,
		"reference_id": req.ReferenceID,
		"description":  req.Description,
		"customer": map[string]interface{}{
			"name":  req.CustomerName,
			"email": req.CustomerEmail,
		},
		"notify":          map[string]interface{}{"email": false, "sms": false},
		"notes":           notes,
		"callback_url":    req.CallbackURL,
		"callback_method": "get",
	}

	body, err := g.client.PaymentLink.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create payment link: %w", err)
	}
	id, _ := body["id"].(string)
	url, _ := body["short_url"].(string)
	if id == "" || url == "" {
		return nil, errors.New("razorpay returned an incomplete payment link")
	}
	return &Checkout{ID: id, URL: url}, nil
}

func (g *RazorpayGateway) CheckoutStatus(_ context.Context, id string) (*CheckoutStatus, error) {
	body, err := g.client.PaymentLink.Fetch(id, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch payment link: %w", err)
	}
	status, _ := body["status"].(string)
	ref, _ := body["reference_id"].(string)
	return &CheckoutStatus{Paid: status == "paid", ReferenceID: ref}, nil
}

func (g *RazorpayGateway) ParseWebhook(body []byte, signature string) (*WebhookEvent, error) {
	if g.webhookSecret == "" || signature == "" ||
		!rzputils.VerifyWebhookSignature(string(body), signature, g.webhookSecret) {
		return nil, ErrBadWebhookSignature
	}

	var payload struct {
		Event   string `json:"event"`
		Payload struct {
			PaymentLink struct {
				Entity struct {
					ID          string `json:"id"`
					ReferenceID string `json:"reference_id"`
				} `json:"entity"`
			} `json:"payment_link"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	return &WebhookEvent{
		Event:       payload.Event,
		CheckoutID:  payload.Payload.PaymentLink.Entity.ID,
		ReferenceID: payload.Payload.PaymentLink.Entity.ReferenceID,
	}, nil
}
