package realtime

import (
	"context"
	"log/slog"

	"anoa.com/tunehub/internal/entity"
	notifDto "anoa.com/tunehub/internal/modules/notification/dto"
	"anoa.com/tunehub/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const EventNotification = "notification"

var pushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tunehub_notifications_dispatched_total",
	Help: "Per-connection notification pushes by result.",
}, []string{"result"})

type Dispatcher struct {
	registry *Registry
	log      *slog.Logger
}

func NewDispatcher(registry *Registry, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		log:      log,
	}
}

// Dispatch pushes n to every live connection of userID and returns how many
// pushes succeeded. A failing connection never affects the others.
func (d *Dispatcher) Dispatch(ctx context.Context, userID uuid.UUID, n entity.Notification) int {
	conns := d.registry.conns(userID)
	if len(conns) == 0 {
		return 0
	}

	ev := Event{
		Event: EventNotification,
		Data:  notifDto.ToNotificationResponse(n),
	}

	delivered := 0
	for _, c := range conns {
		if err := c.Send(ev); err != nil {
			pushesTotal.WithLabelValues("error").Inc()
			d.log.LogAttrs(ctx, slog.LevelWarn, "failed to push notification",
				logger.UserID(userID),
				logger.ConnectionID(c.ID()),
				logger.NotificationID(n.ID),
				logger.Error(err),
			)
			continue
		}
		pushesTotal.WithLabelValues("ok").Inc()
		delivered++
	}
	return delivered
}
