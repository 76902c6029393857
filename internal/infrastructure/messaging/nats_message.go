// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// NatsMessage adapts a received NATS message to domain.Message.
type NatsMessage struct {
	msg *nats.Msg
}

// NewNatsMessage wraps msg.
func NewNatsMessage(msg *nats.Msg) *NatsMessage {
	return &NatsMessage{msg: msg}
}

func (m *NatsMessage) Subject() string { return m.msg.Subject }

func (m *NatsMessage) Data() []byte { return m.msg.Data }

func (m *NatsMessage) HasReply() bool { return m.msg.Reply != "" }

func (m *NatsMessage) Respond(data []byte) error { return m.msg.Respond(data) }

// INatsSubscriber is the subset of *nats.Conn used to register handlers.
type INatsSubscriber interface {
	QueueSubscribe(subj, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Subscribe routes every subject to the handler through a shared queue group.
// Each message is handled with ctx so that shutdown reaches in-flight handlers.
func Subscribe(ctx context.Context, conn INatsSubscriber, queue string, handler domain.MessageHandler, subjects ...string) ([]*nats.Subscription, error) {
	subs := make([]*nats.Subscription, 0, len(subjects))
	for _, subject := range subjects {
		sub, err := conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
			handler.HandleMessage(ctx, NewNatsMessage(msg))
		})
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
		}
		slog.DebugContext(ctx, "subscribed to NATS subject", "subject", subject, "queue", queue)
		subs = append(subs, sub)
	}
	return subs, nil
}

// Drain drains the subscriptions, logging failures.
func Drain(ctx context.Context, subs []*nats.Subscription) {
	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			slog.ErrorContext(ctx, "error draining NATS subscription", "subject", sub.Subject, logging.ErrKey, err)
		}
	}
}
