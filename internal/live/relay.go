// ABOUTME: NATS relay bridging the in-memory broadcaster across server instances
// ABOUTME: Publishes appended messages to per-conversation subjects and re-delivers remote ones locally

package live

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Shameer2006/batchtalk/internal/store"
)

const (
	// subjectPrefix is the NATS subject namespace for message fan-out.
	// One subject per conversation: batchtalk.messages.<conversation-id>.
	subjectPrefix = "batchtalk.messages"
)

// envelope is the wire form a relayed message travels in. Origin identifies
// the publishing instance so relays can skip their own traffic.
type envelope struct {
	Origin  string        `json:"origin"`
	Message *store.Message `json:"message"`
}

// Relay connects a local Broadcaster to NATS so that subscribers on any
// instance see messages appended on any other. It implements Publisher and
// is a drop-in replacement for the bare broadcaster when clustering is
// enabled.
type Relay struct {
	nc         *nats.Conn
	local      *Broadcaster
	sub        *nats.Subscription
	instanceID string
	logger     *slog.Logger
}

// NewRelay connects to NATS and starts forwarding remote messages into the
// local broadcaster. Pass nil logger for default.
func NewRelay(url string, local *Broadcaster, logger *slog.Logger) (*Relay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "live-relay")

	nc, err := nats.Connect(url,
		nats.Name("batchtalk"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	r := &Relay{
		nc:         nc,
		local:      local,
		instanceID: uuid.New().String(),
		logger:     logger,
	}

	// ">" rather than "*": account names may contain dots, which become
	// extra subject tokens, and ">" matches however many remain.
	sub, err := nc.Subscribe(subjectPrefix+".>", r.handleRemote)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribing to %s.>: %w", subjectPrefix, err)
	}
	r.sub = sub

	logger.Info("NATS relay connected", "url", url, "instance_id", r.instanceID)
	return r, nil
}

// Publish fans the message out locally and relays it to every other instance.
// The local delivery happens first so same-instance subscribers never depend
// on the NATS round trip.
func (r *Relay) Publish(conversationID string, msg *store.Message) {
	r.local.Publish(conversationID, msg)

	env := envelope{Origin: r.instanceID, Message: msg}
	data, err := json.Marshal(env)
	if err != nil {
		r.logger.Error("failed to marshal relay envelope",
			"error", err,
			"message_id", msg.ID)
		return
	}

	if err := r.nc.Publish(subject(conversationID), data); err != nil {
		// Relay failure is non-fatal: remote subscribers recover via resync
		r.logger.Warn("failed to relay message",
			"error", err,
			"conversation_id", conversationID,
			"message_id", msg.ID)
	}
}

// handleRemote delivers messages relayed from other instances into the local
// broadcaster. Own messages are skipped; they were already delivered in
// Publish. Redelivery after a reconnect is harmless since subscribers dedupe
// by message ID.
func (r *Relay) handleRemote(m *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(m.Data, &env); err != nil {
		r.logger.Warn("dropping malformed relay envelope", "error", err, "subject", m.Subject)
		return
	}
	if env.Origin == r.instanceID || env.Message == nil {
		return
	}

	r.local.Publish(conversationFromSubject(m.Subject), env.Message)
}

// Close stops the relay and drains the NATS connection.
func (r *Relay) Close() {
	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil {
			r.logger.Warn("failed to unsubscribe relay", "error", err)
		}
	}
	r.nc.Close()
	r.logger.Debug("relay closed")
}

func subject(conversationID string) string {
	return subjectPrefix + "." + conversationID
}

// conversationFromSubject inverts subject. The remainder after the prefix is
// the conversation id verbatim, dots and all.
func conversationFromSubject(subj string) string {
	return strings.TrimPrefix(subj, subjectPrefix+".")
}
