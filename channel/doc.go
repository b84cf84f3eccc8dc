// Package channel implements the fan-out core for a single multiplexed
// remote-desktop session: Channel is a per-virtual-channel registry of
// ChannelClient membership, capability negotiation, and broadcast I/O
// (receive/send/push, pipe population, quiesce-before-migrate).
package channel
