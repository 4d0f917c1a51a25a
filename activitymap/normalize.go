package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-session"
)

const (
	// MetadataKeyRoleKind stores the role kind attached to the event.
	MetadataKeyRoleKind = "role_kind"
	// MetadataKeyReason stores the failure or change reason.
	MetadataKeyReason = "reason"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "principal"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
	now           func() time.Time
}

// Normalize converts an auth.ActivityEvent into a generic record. Events
// without a principal, such as failed logins for unknown keys, are attributed
// to the actor fallback.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	principalID := strings.TrimSpace(event.PrincipalID)
	actorID := principalID
	if actorID == "" {
		actorID = options.actorFallback
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   principalID,
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithChannel sets the channel for normalized records.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType sets the object type for normalized records.
func WithObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event has no principal.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			opts.actorFallback = actorID
		}
	}
}

// WithClock sets the clock used for events missing OccurredAt.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

// Sink wraps fn as an auth.ActivitySink that receives normalized records.
func Sink(fn func(Normalized) error, opts ...Option) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		return fn(Normalize(event, opts...))
	})
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	set := func(key, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	set(MetadataKeyRoleKind, string(event.RoleKind))
	set(MetadataKeyReason, strings.TrimSpace(event.Reason))

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
