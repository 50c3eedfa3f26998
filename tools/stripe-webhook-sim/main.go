package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/groomdesk/libs/config"
	"github.com/stripe/stripe-go/v79/webhook"
)

func main() {
	var (
		baseURL  = flag.String("base-url", config.String("BASE_URL", "http://localhost:8083"), "booking-service base url")
		evtType  = flag.String("type", config.String("STRIPE_EVENT_TYPE", "payment_intent.succeeded"), "stripe event type")
		business = flag.String("business-id", config.String("BUSINESS_ID", ""), "business_id metadata")
		invoice  = flag.String("invoice-id", config.String("INVOICE_ID", ""), "invoice_id metadata")
		eventID  = flag.String("event-id", "", "stripe event id (default: generated)")
		secret   = flag.String("secret", config.String("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}
	if strings.TrimSpace(*business) == "" || strings.TrimSpace(*invoice) == "" {
		fatal("BUSINESS_ID and INVOICE_ID are required")
	}

	now := time.Now().UTC()
	id := *eventID
	if id == "" {
		id = fmt.Sprintf("evt_test_%d", now.UnixNano())
	}

	payload, err := buildEventJSON(id, *evtType, now, *business, *invoice)
	if err != nil {
		fatal(err.Error())
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    *secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+"/api/v1/billing/webhooks/stripe", bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	fmt.Printf("event=%s status=%d body=%s\n", id, resp.StatusCode, strings.TrimSpace(string(body)))
}

func buildEventJSON(eventID, eventType string, t time.Time, businessID, invoiceID string) ([]byte, error) {
	var object map[string]any
	metadata := map[string]any{
		"business_id": businessID,
		"invoice_id":  invoiceID,
	}
	switch eventType {
	case "payment_intent.succeeded":
		object = map[string]any{
			"id":       "pi_test_123",
			"object":   "payment_intent",
			"status":   "succeeded",
			"metadata": metadata,
		}
	case "checkout.session.completed":
		object = map[string]any{
			"id":       "cs_test_123",
			"object":   "checkout.session",
			"metadata": metadata,
		}
	default:
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}
	return json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"created":     t.Unix(),
		"type":        eventType,
		"api_version": "2020-08-27",
		"data":        map[string]any{"object": object},
	})
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
