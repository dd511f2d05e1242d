package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// SessionTimeout is the default session timeout (24 hours)
	SessionTimeout = 24 * time.Hour
)

// Cache constants
const (
	// ListCacheTTL is the time-to-live for cached owner-scoped list queries (15 minutes)
	ListCacheTTL = 15 * time.Minute

	// RecipientListCacheKey is the cache key format for per-owner recipient lists
	RecipientListCacheKey = "recipient_list_%d"

	// MessageListCacheKey is the cache key format for per-owner message lists
	MessageListCacheKey = "message_list_%d"

	// MailingListCacheKey is the cache key format for per-owner mailing lists
	MailingListCacheKey = "mailing_list_%d"

	// AttemptListCacheKey is the cache key format for per-owner attempt lists
	AttemptListCacheKey = "attempt_list_%d"
)

// Request context keys
const (
	RequestIDKey = "X-Request-ID"
	UserAgentKey = "User-Agent"
	IPAddressKey = "IP-Address"
	EndpointKey  = "Endpoint"

	TimeoutKey    = "Timeout"
	CancelFuncKey = "CancelFunc"
)

// Dispatch constants
const (
	// TransportResponseDelivered is stored on the attempt when the whole batch was accepted
	TransportResponseDelivered = "delivered"
)
