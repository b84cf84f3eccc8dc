// Package session implements Client, the per-connection aggregate that
// owns a set of channel.ChannelClient memberships and drives the
// seamless/semi-seamless migration handshake across all of them (spec
// section 4.7).
package session
