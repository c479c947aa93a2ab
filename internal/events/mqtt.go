// Package events announces fired schedules on the tracker's MQTT broker so
// other plugins can react without polling the schedule table.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/trackerplugins/scheduled/internal/model"
)

const firedTopic = "scheduled/fired"

type MQTTPublisher struct {
	client mqtt.Client
}

var connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
	log.Info().Msg("connected to MQTT broker")
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Warn().Err(err).Msg("MQTT connection lost")
}

// NewMQTTPublisher connects to the broker. The returned publisher is
// best-effort: publish failures are logged, never returned into a batch.
func NewMQTTPublisher(brokerURL, clientID string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}
	return &MQTTPublisher{client: client}, nil
}

type firedEvent struct {
	ScheduleID int    `json:"schedule_id"`
	TicketID   int    `json:"ticket_id"`
	Summary    string `json:"summary"`
	Recurring  bool   `json:"recurring"`
	FiredAt    string `json:"fired_at"`
}

func (p *MQTTPublisher) ScheduleFired(ctx context.Context, rec model.Schedule, ticketID int) {
	payload, err := json.Marshal(firedEvent{
		ScheduleID: rec.ID,
		TicketID:   ticketID,
		Summary:    rec.Summary,
		Recurring:  rec.Recurring(),
		FiredAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Warn().Err(err).Msg("encoding fired event failed")
		return
	}

	token := p.client.Publish(firedTopic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		log.Warn().Err(token.Error()).
			Int("schedule_id", rec.ID).
			Msg("publishing fired event failed")
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
