// Package channels adapts each messaging platform's wire format to and from
// the service's platform-agnostic model.NormalizedEvent / model.OutboundMessage
// shapes. Every adapter owns exactly one platform's inbound parsing, outbound
// delivery, and (where the platform requires it) webhook authenticity check.
package channels

import (
	"context"

	"github.com/basket/tzwatch/internal/model"
)

// Adapter is the minimal surface every platform connector implements:
// translate a raw webhook body into zero or more normalized events, and
// deliver an outbound reply back through the platform's API.
type Adapter interface {
	Platform() model.Platform
	Send(ctx context.Context, msg model.OutboundMessage) error
}
