package channels_test

import "github.com/basket/tzwatch/internal/channels"

// Compile-time interface checks: every platform adapter must implement
// Adapter.
var (
	_ channels.Adapter = (*channels.TelegramChannel)(nil)
	_ channels.Adapter = (*channels.SlackChannel)(nil)
	_ channels.Adapter = (*channels.DiscordChannel)(nil)
	_ channels.Adapter = (*channels.WhatsAppChannel)(nil)
)
