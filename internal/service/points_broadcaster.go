package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/observability"
)

const pointsBufferSize = 32

// PointsBroadcaster streams point changes to websocket subscribers of a course, across API nodes.
type PointsBroadcaster interface {
	Broadcast(ctx context.Context, event dto.PointsEvent)
	Subscribe(courseID uint) (<-chan dto.PointsEvent, func())
	Start(ctx context.Context)
}

type pointsBroadcaster struct {
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	broker      *pointsBroker
	nodeID      string
}

type pointsEnvelope struct {
	Source string          `json:"source"`
	Event  dto.PointsEvent `json:"event"`
	SentAt time.Time       `json:"sent_at"`
}

type pointsBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.PointsEvent]struct{}
}

// NewPointsBroadcaster constructs the broadcaster. A nil NATS connection keeps delivery node-local.
func NewPointsBroadcaster(natsConn *nats.Conn, channelBase string, logger zerolog.Logger) PointsBroadcaster {
	subject := ""
	if channelBase != "" {
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".points"
	}
	return &pointsBroadcaster{
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "points_broadcaster").Logger(),
		broker: &pointsBroker{
			subscribers: make(map[uint]map[chan dto.PointsEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (b *pointsBroadcaster) Start(ctx context.Context) {
	if b.nats == nil || b.natsSubject == "" {
		return
	}

	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handleEvent(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to points subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain points subscription")
		}
	}()
}

func (b *pointsBroadcaster) Broadcast(ctx context.Context, event dto.PointsEvent) {
	b.broker.broadcast(event)

	if b.nats == nil || b.natsSubject == "" {
		return
	}
	payload, err := json.Marshal(pointsEnvelope{Source: b.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to encode points event")
		return
	}
	if err := b.nats.Publish(b.natsSubject, payload); err != nil {
		b.logger.Warn().Err(err).Uint("course_id", event.CourseID).Msg("failed to publish points event")
	}
}

func (b *pointsBroadcaster) Subscribe(courseID uint) (<-chan dto.PointsEvent, func()) {
	channel := make(chan dto.PointsEvent, pointsBufferSize)
	b.broker.subscribe(courseID, channel)
	observability.RealtimeClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.broker.unsubscribe(courseID, channel)
			observability.RealtimeClientsActive().Dec()
		})
	}
	return channel, cleanup
}

func (b *pointsBroadcaster) handleEvent(payload []byte) {
	var envelope pointsEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid points event payload")
		return
	}
	if envelope.Source == b.nodeID {
		return
	}
	b.broker.broadcast(envelope.Event)
}

func (p *pointsBroker) subscribe(courseID uint, channel chan dto.PointsEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subscribers[courseID]; !ok {
		p.subscribers[courseID] = make(map[chan dto.PointsEvent]struct{})
	}
	p.subscribers[courseID][channel] = struct{}{}
}

func (p *pointsBroker) unsubscribe(courseID uint, channel chan dto.PointsEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if subscribers, ok := p.subscribers[courseID]; ok {
		delete(subscribers, channel)
		if len(subscribers) == 0 {
			delete(p.subscribers, courseID)
		}
	}
	close(channel)
}

// broadcast never blocks; a subscriber with a full buffer misses the event.
func (p *pointsBroker) broadcast(event dto.PointsEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for channel := range p.subscribers[event.CourseID] {
		select {
		case channel <- event:
		default:
		}
	}
}
