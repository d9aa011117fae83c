// Package notify delivers out-of-band notifications: APNs pushes for users
// who are not connected, and one-time codes over email or SMS.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Push is a user visible notification
type Push struct {
	Title string
	Body  string
	Data  map[string]string
}

// APNsConfig holds the token based APNs credentials
type APNsConfig struct {
	KeyFile    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

// APNsNotifier sends pushes to iOS devices
type APNsNotifier struct {
	client *apns2.Client
	topic  string
}

// NewAPNsNotifier loads the .p8 signing key and builds a token client
func NewAPNsNotifier(cfg APNsConfig) (*APNsNotifier, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}
	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return NewAPNsNotifierWithClient(client, cfg.Topic), nil
}

// NewAPNsNotifierWithClient wraps an existing apns2 client
func NewAPNsNotifierWithClient(client *apns2.Client, topic string) *APNsNotifier {
	return &APNsNotifier{client: client, topic: topic}
}

// Push delivers p to deviceToken
func (n *APNsNotifier) Push(ctx context.Context, deviceToken string, p Push) error {
	pl := payload.NewPayload().AlertTitle(p.Title).AlertBody(p.Body).Sound("default")
	for k, v := range p.Data {
		pl = pl.Custom(k, v)
	}

	res, err := n.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       n.topic,
		PushType:    apns2.PushTypeAlert,
		Payload:     pl,
	})
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %d %s", res.StatusCode, res.Reason)
	}

	log.Debug().Str("apns_id", res.ApnsID).Msg("Push delivered")
	return nil
}

// NopNotifier drops every push
type NopNotifier struct{}

func (NopNotifier) Push(context.Context, string, Push) error { return nil }
