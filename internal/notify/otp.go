package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogOTPSender writes codes to the log instead of a mail or SMS gateway.
// It is the development transport; production gateways implement the same
// SendOTP method.
type LogOTPSender struct {
	Channel string
}

// SendOTP logs the code for destination
func (s LogOTPSender) SendOTP(_ context.Context, destination, code string) error {
	log.Info().
		Str("channel", s.Channel).
		Str("destination", destination).
		Str("code", code).
		Msg("One-time code issued")
	return nil
}
