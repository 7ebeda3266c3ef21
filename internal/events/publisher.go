package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"swap-backend/internal/models"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// ExecutionEvent is the message published when an execution changes status
type ExecutionEvent struct {
	ExecutionID string                 `json:"executionId"`
	BackendID   string                 `json:"backendId"`
	ChainID     uint64                 `json:"chainId"`
	Wallet      string                 `json:"wallet"`
	Status      models.ExecutionStatus `json:"status"`
	TxHash      string                 `json:"txHash,omitempty"`
	ErrorCode   string                 `json:"errorCode,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Publisher emits execution status events. Publishing is best-effort; a
// failed publish never fails the execution it describes.
type Publisher interface {
	PublishExecutionStatus(event *ExecutionEvent)
	Close()
}

// NATSPublisher publishes execution events to swap.execution.<status>
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) PublishExecutionStatus(event *ExecutionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Warn("Failed to marshal execution event")
		return
	}

	subject := fmt.Sprintf("swap.execution.%s", strings.ToLower(string(event.Status)))
	if err := p.conn.Publish(subject, data); err != nil {
		logrus.WithFields(logrus.Fields{
			"subject":      subject,
			"execution_id": event.ExecutionID,
		}).WithError(err).Warn("Failed to publish execution event")
	}
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// NoopPublisher is used when NATS is not configured
type NoopPublisher struct{}

func (NoopPublisher) PublishExecutionStatus(*ExecutionEvent) {}
func (NoopPublisher) Close()                                 {}
