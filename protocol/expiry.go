package protocol

import "time"

// Default TTLs by message type. Reports go stale fast: a position that sat
// in a broker for longer than the inactivity window is worthless.
var defaultTTLs = map[string]time.Duration{
	TypeRobotReport: 30 * time.Second,
	TypeReportAck:   30 * time.Second,

	TypeRobotOnline:  5 * time.Minute,
	TypeRobotUpdate:  time.Minute,
	TypeRobotOffline: 5 * time.Minute,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = time.Minute

// DefaultTTLFor returns the default TTL for a message type.
func DefaultTTLFor(msgType string) time.Duration {
	if ttl, ok := defaultTTLs[msgType]; ok {
		return ttl
	}
	return FallbackTTL
}

// IsExpired returns true if the envelope has passed its expiry time.
func IsExpired(env *Envelope) bool {
	if env.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(env.ExpiresAt)
}

// IsExpiredHeader checks expiry using only the raw header.
func IsExpiredHeader(hdr *RawHeader) bool {
	if hdr.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(hdr.ExpiresAt)
}
