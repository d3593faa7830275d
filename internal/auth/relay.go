package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trade_dashboard/internal/logging"
)

// relayMessage is the payload published on the logout channel.
type relayMessage struct {
	Instance string    `json:"instance"`
	At       time.Time `json:"at"`
}

// LogoutRelay shares force-logout signals between dashboard processes
// through a Redis pub/sub channel. A process ignores its own messages.
type LogoutRelay struct {
	rdb        redis.UniversalClient
	channel    string
	instanceID string
	bus        *LogoutBus
	logger     *logging.Logger
}

// NewLogoutRelay creates a relay feeding remote signals into bus.
func NewLogoutRelay(rdb redis.UniversalClient, channel string, bus *LogoutBus, logger *logging.Logger) *LogoutRelay {
	if logger == nil {
		logger = logging.NewSilent()
	}
	return &LogoutRelay{
		rdb:        rdb,
		channel:    channel,
		instanceID: uuid.NewString(),
		bus:        bus,
		logger:     logger.Component("logout_relay"),
	}
}

// InstanceID identifies this process on the channel.
func (r *LogoutRelay) InstanceID() string { return r.instanceID }

// Publish announces a logout to the other processes.
func (r *LogoutRelay) Publish(ctx context.Context) error {
	data, err := json.Marshal(relayMessage{Instance: r.instanceID, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish logout: %w", err)
	}
	return nil
}

// Listen subscribes to the channel and emits a logout for every message
// from another instance. It returns when ctx is done.
func (r *LogoutRelay) Listen(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info().Str("channel", r.channel).Msg("listening for remote logouts")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *LogoutRelay) handle(payload string) {
	var m relayMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		r.logger.Warn().Err(err).Msg("ignoring malformed logout message")
		return
	}
	if m.Instance == r.instanceID {
		return
	}
	r.bus.Emit("relay")
}
