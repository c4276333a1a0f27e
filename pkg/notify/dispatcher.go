package notify

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// Sender queues notifications without waiting for them to be stored.
type Sender interface {
	Send(msg Message)
}

type flush struct{}

type flushed struct{}

// notificationActor writes queued notifications one at a time.
type notificationActor struct {
	notifier *Notifier
	logger   *zap.Logger
	timeout  time.Duration
}

func (a *notificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *Message:
		writeCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if _, err := a.notifier.Notify(writeCtx, *msg); err != nil {
			a.logger.Warn("Failed to store notification",
				zap.Uint("user_id", msg.UserID),
				zap.String("type", msg.Type),
				zap.Error(err))
		}

	case *flush:
		ctx.Respond(&flushed{})

	case *actor.Started:
		a.logger.Info("Notification actor started")

	case *actor.Stopped:
		a.logger.Info("Notification actor stopped")
	}
}

// Dispatcher owns the actor system that stores notifications off the request path.
type Dispatcher struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

func NewDispatcher(notifier *Notifier, logger *zap.Logger) (*Dispatcher, error) {
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return &notificationActor{
			notifier: notifier,
			logger:   logger.Named("notification-actor"),
			timeout:  5 * time.Second,
		}
	})
	pid, err := system.Root.SpawnNamed(props, "notification-actor")
	if err != nil {
		return nil, err
	}
	return &Dispatcher{system: system, pid: pid, logger: logger.Named("dispatcher")}, nil
}

func (d *Dispatcher) Send(msg Message) {
	if msg.UserID == 0 {
		return
	}
	d.system.Root.Send(d.pid, &msg)
}

// Flush blocks until every notification sent before the call has been handled.
func (d *Dispatcher) Flush(timeout time.Duration) error {
	_, err := d.system.Root.RequestFuture(d.pid, &flush{}, timeout).Result()
	return err
}

// Stop drains the mailbox and stops the actor.
func (d *Dispatcher) Stop(timeout time.Duration) {
	if err := d.Flush(timeout); err != nil {
		d.logger.Warn("Notification queue not drained", zap.Error(err))
	}
	if err := d.system.Root.StopFuture(d.pid).Wait(); err != nil {
		d.logger.Warn("Failed to stop notification actor", zap.Error(err))
	}
	d.system.Shutdown()
}

// SyncSender stores notifications inline. Used when no dispatcher is running.
type SyncSender struct {
	Notifier *Notifier
	Logger   *zap.Logger
}

func (s SyncSender) Send(msg Message) {
	if _, err := s.Notifier.Notify(context.Background(), msg); err != nil && s.Logger != nil {
		s.Logger.Warn("Failed to store notification", zap.Uint("user_id", msg.UserID), zap.Error(err))
	}
}
