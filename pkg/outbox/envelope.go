package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

const currentEnvelopeVersion = 1

var (
	ErrEnvelopeMalformed = errors.New("outbox envelope malformed")
	ErrEnvelopeVersion   = errors.New("outbox envelope version unsupported")
	ErrEnvelopeEmpty     = errors.New("outbox envelope has no data")
)

// ActorRef is the actor snapshot carried with an event.
type ActorRef struct {
	TenantID uuid.UUID  `json:"tenantId"`
	UserID   uuid.UUID  `json:"userId"`
	ShopID   *uuid.UUID `json:"shopId,omitempty"`
	Role     string     `json:"role,omitempty"`
}

// RefOf snapshots actor. A zero shop is omitted.
func RefOf(actor types.Actor) *ActorRef {
	ref := &ActorRef{
		TenantID: actor.TenantID,
		UserID:   actor.UserID,
		Role:     actor.Role.String(),
	}
	if actor.ShopID != uuid.Nil {
		shopID := actor.ShopID
		ref.ShopID = &shopID
	}
	return ref
}

// PayloadEnvelope is the JSON document stored in outbox_events.payload and
// sent as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// OpenEnvelope parses a stored payload. Versions newer than this build
// understands are rejected rather than half-decoded.
func OpenEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrEnvelopeMalformed, err)
	}
	if env.Version < 1 || env.Version > currentEnvelopeVersion {
		return env, fmt.Errorf("%w: %d", ErrEnvelopeVersion, env.Version)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, ErrEnvelopeEmpty
	}
	return env, nil
}

// Decode unmarshals the event data into v.
func (e PayloadEnvelope) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: data: %v", ErrEnvelopeMalformed, err)
	}
	return nil
}
