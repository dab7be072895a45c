package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/e2dconnect/e2d/internal/model"
)

// ErrExpired means the push service no longer knows the subscription
// (404 or 410) and it should be forgotten.
var ErrExpired = errors.New("push subscription expired")

// DefaultTTL is how long a push service keeps an undelivered message.
const DefaultTTL = 24 * time.Hour

// Payload is the JSON the service worker receives.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Service signs and delivers web push messages with one VAPID key pair.
// A nil or keyless Service is disabled.
type Service struct {
	keys       Keys
	subscriber string
	ttl        time.Duration
	client     webpush.HTTPClient
}

// Keys is a base64url VAPID key pair.
type Keys struct {
	Public  string
	Private string
}

type Option func(*Service)

func WithHTTPClient(c webpush.HTTPClient) Option {
	return func(s *Service) { s.client = c }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// NewService builds a Service. subscriber is the contact announced to
// push services in the VAPID claims.
func NewService(publicKey, privateKey, subscriber string, opts ...Option) *Service {
	if subscriber == "" {
		subscriber = "mailto:bureau@e2d.local"
	}
	s := &Service{
		keys:       Keys{Public: publicKey, Private: privateKey},
		subscriber: subscriber,
		ttl:        DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Enabled() bool {
	return s != nil && s.keys.Public != "" && s.keys.Private != ""
}

// VAPIDPublicKey is handed to browsers as applicationServerKey.
func (s *Service) VAPIDPublicKey() string {
	if s == nil {
		return ""
	}
	return s.keys.Public
}

func (s *Service) options() *webpush.Options {
	return &webpush.Options{
		HTTPClient:      s.client,
		VAPIDPublicKey:  s.keys.Public,
		VAPIDPrivateKey: s.keys.Private,
		Subscriber:      s.subscriber,
		TTL:             int(s.ttl / time.Second),
		Urgency:         webpush.UrgencyNormal,
	}
}

// Send delivers payload to one subscription.
func (s *Service) Send(ctx context.Context, sub model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dhKey, Auth: sub.AuthKey},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, target, s.options())
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// Delivery summarizes a fan-out.
type Delivery struct {
	Sent    int
	Expired []model.PushSubscription
	Failed  map[int64]error
}

// SendAll delivers payload to every subscription. Expired ones are
// collected for the caller to prune; other failures are keyed by
// subscription ID.
func (s *Service) SendAll(ctx context.Context, subs []model.PushSubscription, payload Payload) Delivery {
	var d Delivery
	for _, sub := range subs {
		err := s.Send(ctx, sub, payload)
		switch {
		case err == nil:
			d.Sent++
		case errors.Is(err, ErrExpired):
			d.Expired = append(d.Expired, sub)
		default:
			if d.Failed == nil {
				d.Failed = make(map[int64]error)
			}
			d.Failed[sub.ID] = err
		}
	}
	return d
}

// GenerateVAPIDKeys returns a fresh base64url key pair.
func GenerateVAPIDKeys() (Keys, error) {
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return Keys{}, fmt.Errorf("generate VAPID keys: %w", err)
	}
	return Keys{Public: pub, Private: priv}, nil
}
