// Package keys builds the scoped storage keys shared by all sentinel backends.
package keys

import (
	"strconv"
	"strings"
)

// DefaultBucket is used when no handler identifier can be resolved.
const DefaultBucket = "unknown"

// Feature namespaces baked into every key.
const (
	FeatureRate     = "rate"
	FeatureDebounce = "debounce"
)

// Scope identifies the identity granularity a key is built on.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeUser   Scope = "user"
	ScopeChat   Scope = "chat"
	ScopeGroup  Scope = "group"
)

// Builder produces deterministic, prefix-namespaced keys of the form
// <prefix><feature>:<scope>:<ids>:<bucket>[:<method>]. It holds no state
// beyond the configured prefix.
type Builder struct {
	prefix string
}

// NewBuilder creates a Builder. A missing trailing separator on the prefix
// is appended; an empty prefix is allowed and yields unnamespaced keys.
func NewBuilder(prefix string) *Builder {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	return &Builder{prefix: prefix}
}

// Prefix returns the normalized key prefix.
func (b *Builder) Prefix() string {
	return b.prefix
}

// Global builds a key that is not tied to any identity.
func (b *Builder) Global(feature, bucket, method string) string {
	return b.join(feature, string(ScopeGlobal), nil, bucket, method)
}

// User builds a key scoped to a single user.
func (b *Builder) User(feature string, userID int64, bucket, method string) string {
	return b.join(feature, string(ScopeUser), []int64{userID}, bucket, method)
}

// Chat builds a key scoped to a single chat.
func (b *Builder) Chat(feature string, chatID int64, bucket, method string) string {
	return b.join(feature, string(ScopeChat), []int64{chatID}, bucket, method)
}

// Group builds a key scoped to a user within a chat.
func (b *Builder) Group(feature string, userID, chatID int64, bucket, method string) string {
	return b.join(feature, string(ScopeGroup), []int64{userID, chatID}, bucket, method)
}

// ForIdentity picks the narrowest scope the resolved identity allows:
// Group when both ids are known, then User, then Chat, then Global.
// A zero id counts as unresolved (Telegram never issues id 0).
func (b *Builder) ForIdentity(feature string, userID, chatID int64, bucket, method string) string {
	switch {
	case userID != 0 && chatID != 0:
		return b.Group(feature, userID, chatID, bucket, method)
	case userID != 0:
		return b.User(feature, userID, bucket, method)
	case chatID != 0:
		return b.Chat(feature, chatID, bucket, method)
	default:
		return b.Global(feature, bucket, method)
	}
}

func (b *Builder) join(feature, scope string, ids []int64, bucket, method string) string {
	if bucket == "" {
		bucket = DefaultBucket
	}

	parts := make([]string, 0, 4+len(ids))
	parts = append(parts, feature, scope)
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	parts = append(parts, bucket)
	if method != "" {
		parts = append(parts, method)
	}

	return b.prefix + strings.Join(parts, ":")
}
