package viewer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// ConsumerConfig selects the topic and how far back to replay.
type ConsumerConfig struct {
	Brokers  []string
	Topic    string
	Lookback time.Duration
}

// Consume reads cfg.Topic and forwards every decodable event to hub until
// ctx is done.
func Consume(ctx context.Context, hub *Hub, cfg ConsumerConfig) {
	// Partition reader without a consumer group; each viewer sees every event.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   cfg.Brokers,
		Topic:     cfg.Topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if cfg.Lookback > 0 {
		if err := reader.SetOffsetAt(ctx, time.Now().Add(-cfg.Lookback)); err != nil {
			log.Warn().Err(err).Str("topic", cfg.Topic).Msg("Could not rewind topic")
		}
	}

	log.Info().
		Str("topic", cfg.Topic).
		Dur("lookback", cfg.Lookback).
		Msg("Consuming translation events")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", cfg.Topic).Msg("Kafka read failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		ev, ok := Decode(msg.Value)
		if !ok {
			log.Warn().Str("topic", cfg.Topic).Int64("offset", msg.Offset).Msg("Skipping undecodable event")
			continue
		}

		log.Debug().
			Str("eventType", ev.EventType).
			Str("requestId", ev.RequestID).
			Msg("Received translation event")
		hub.Broadcast(ev)
	}
}

// Decode parses a Kafka payload into an Event.
func Decode(payload []byte) (Event, bool) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil || ev.EventType == "" {
		return Event{}, false
	}
	return ev, true
}
