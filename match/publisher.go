package match

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher manages publishing search reports to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	reports       map[string]Report
	mu            sync.RWMutex
}

// NewPublisher creates a new report publisher
// The topic prefix resolves like the broker settings: MQTT_PUBLISH_PREFIX
// env var first, then configPrefix, then the "sickan" default
// If client is nil, publishing is disabled (for testing)
func NewPublisher(client mqtt.Client, configPrefix string) *Publisher {
	prefix := os.Getenv("MQTT_PUBLISH_PREFIX")
	if prefix == "" {
		prefix = configPrefix
	}
	if prefix == "" {
		prefix = "sickan"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // QoS 0 for report updates (fire and forget)
		retain:        true, // Retain for latest report per source
		reports:       make(map[string]Report),
	}
}

// PublishReport publishes one source's latest search report to MQTT
// Publishes to both the source's individual topic and the combined topic
func (p *Publisher) PublishReport(sourceID string, report Report) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	p.mu.Lock()
	p.reports[sourceID] = report
	p.mu.Unlock()

	// Publish to individual topic: sickan/{sourceID}
	if err := p.publishIndividual(sourceID, report); err != nil {
		log.Printf("Error publishing report for %s: %v", sourceID, err)
		return err
	}

	// Publish to combined topic: sickan/reports
	if err := p.publishCombined(); err != nil {
		log.Printf("Error publishing combined reports: %v", err)
		return err
	}

	return nil
}

// publishIndividual publishes a single source's report to its individual topic
func (p *Publisher) publishIndividual(sourceID string, report Report) error {
	topic := fmt.Sprintf("%s/%s", p.publishPrefix, sourceID)

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("Published report for %s: %d overlays", sourceID, len(report.Overlays))
	return nil
}

// publishCombined publishes all source reports to the combined topic
func (p *Publisher) publishCombined() error {
	p.mu.RLock()
	reports := make(map[string]Report, len(p.reports))
	for id, rep := range p.reports {
		reports[id] = rep
	}
	p.mu.RUnlock()

	if len(reports) == 0 {
		return nil
	}

	topic := fmt.Sprintf("%s/reports", p.publishPrefix)

	message := map[string]interface{}{
		"sources":   reports,
		"timestamp": time.Now().Unix(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling combined reports: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// Prefix returns the topic prefix in effect after env/config resolution
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}

// GetReport returns the last published report for a source
func (p *Publisher) GetReport(sourceID string) (Report, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rep, ok := p.reports[sourceID]
	return rep, ok
}

// ClearReport removes a source's report (e.g., when it goes offline)
func (p *Publisher) ClearReport(sourceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.reports, sourceID)
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
