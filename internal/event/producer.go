package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/kbhavake29/Task-flow-WebApp/internal/domain"
	"github.com/kbhavake29/Task-flow-WebApp/pkg/kafka"
	"github.com/kbhavake29/Task-flow-WebApp/pkg/logger"
)

// Topics for authentication lifecycle events.
const (
	TopicUserRegistered = "taskflow.user.registered"
	TopicUserSignedIn   = "taskflow.user.signed_in"
	TopicTokensRevoked  = "taskflow.user.tokens_revoked"
)

const aggregateUser = "user"

// source identifies this service in event envelopes.
const source = "taskflow-api"

// UserRegisteredData is the payload of TopicUserRegistered.
type UserRegisteredData struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	RegisteredAt time.Time `json:"registered_at"`
}

// UserSignedInData is the payload of TopicUserSignedIn.
type UserSignedInData struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	IPAddress  string    `json:"ip_address,omitempty"`
	SignedInAt time.Time `json:"signed_in_at"`
}

// TokensRevokedData is the payload of TopicTokensRevoked.
type TokensRevokedData struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	RevokedAt time.Time `json:"revoked_at"`
}

// Publisher emits authentication lifecycle events to Kafka. Event delivery
// is best-effort by contract: publish failures are logged and swallowed so
// the auth flows never depend on broker availability.
type Publisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewPublisher creates a new event publisher.
func NewPublisher(producer *kafka.Producer, logger *slog.Logger) *Publisher {
	return &Publisher{producer: producer, logger: logger}
}

// UserRegistered announces a new account.
func (p *Publisher) UserRegistered(ctx context.Context, user *domain.User) {
	p.publish(ctx, TopicUserRegistered, user.ID, UserRegisteredData{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		RegisteredAt: user.CreatedAt,
	})
}

// UserSignedIn announces a successful authentication.
func (p *Publisher) UserSignedIn(ctx context.Context, user *domain.User, ipAddress string) {
	p.publish(ctx, TopicUserSignedIn, user.ID, UserSignedInData{
		UserID:     user.ID,
		Email:      user.Email,
		IPAddress:  ipAddress,
		SignedInAt: time.Now().UTC(),
	})
}

// TokensRevoked announces a bulk session termination.
func (p *Publisher) TokensRevoked(ctx context.Context, userID, reason string) {
	p.publish(ctx, TopicTokensRevoked, userID, TokensRevokedData{
		UserID:    userID,
		Reason:    reason,
		RevokedAt: time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, topic, userID string, data any) {
	evt, err := kafka.NewEvent(topic, userID, aggregateUser, source, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build event",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}

	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt = evt.WithCorrelationID(id)
	}

	if err := p.producer.Publish(ctx, topic, evt); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
	}
}
