// Package channel defines the provider adapter contract consumed by the
// delivery pipeline: one Sender per delivery channel, returning a normalized
// Result regardless of vendor.
//
// The Registry holds the configured senders and answers availability checks
// during optimal-channel selection. Production adapters live in
// subpackages (for example channel/postmark for transactional email);
// DevSender logs instead of sending and is meant for development and tests.
package channel
