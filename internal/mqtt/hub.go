package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"voicecmd/internal/domain"
)

type HubConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// PolicyAdmin is the slice of the authorization policy the hub can mutate on
// behalf of remote operators.
type PolicyAdmin interface {
	AddIntent(name string)
	RemoveIntent(name string)
	SetThreshold(threshold float64) error
}

// Hub connects the pipeline to the message bus: produced command records go
// out to the downstream controller, and policy updates come in from
// operators.
type Hub struct {
	cfg    HubConfig
	client paho.Client
	policy PolicyAdmin
	logger *slog.Logger
}

func NewHub(cfg HubConfig, policy PolicyAdmin, logger *slog.Logger) *Hub {
	return &Hub{cfg: cfg, policy: policy, logger: logger}
}

func (h *Hub) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(h.cfg.BrokerURL).
		SetClientID(h.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if h.cfg.Username != "" {
		opts.SetUsername(h.cfg.Username)
		opts.SetPassword(h.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		h.logger.Error("mqtt connection lost", "error", err)
	})

	h.client = paho.NewClient(opts)
	if token := h.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	if token := h.client.Subscribe(TopicPolicyUpdate(h.cfg.TopicPrefix), 1, h.handlePolicyUpdate); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	go func() {
		<-ctx.Done()
		h.client.Disconnect(100)
	}()

	return nil
}

// PublishCommand delivers a finished record to the downstream controller.
func (h *Hub) PublishCommand(record domain.CommandRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	token := h.client.Publish(TopicCommand(h.cfg.TopicPrefix), 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// PublishStatus reports a pipeline outcome (including failures) keyed by
// request ID.
func (h *Hub) PublishStatus(requestID, status, message string) error {
	payload, err := json.Marshal(map[string]string{
		"request_id": requestID,
		"status":     status,
		"message":    message,
	})
	if err != nil {
		return err
	}
	token := h.client.Publish(TopicStatus(h.cfg.TopicPrefix, requestID), 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// PolicyUpdate is the wire shape of a remote policy mutation.
type PolicyUpdate struct {
	Action    string   `json:"action"`
	Intent    string   `json:"intent,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

func (h *Hub) handlePolicyUpdate(_ paho.Client, msg paho.Message) {
	var update PolicyUpdate
	if err := json.Unmarshal(msg.Payload(), &update); err != nil {
		h.logger.Warn("invalid policy update payload", "topic", msg.Topic(), "error", err)
		return
	}
	if err := ApplyPolicyUpdate(h.policy, update); err != nil {
		h.logger.Warn("policy update rejected", "action", update.Action, "error", err)
		return
	}
	h.logger.Info("policy updated", "action", update.Action, "intent", update.Intent)
}

// ApplyPolicyUpdate validates and applies one mutation.
func ApplyPolicyUpdate(policy PolicyAdmin, update PolicyUpdate) error {
	switch update.Action {
	case "add_intent":
		if strings.TrimSpace(update.Intent) == "" {
			return fmt.Errorf("add_intent requires an intent name")
		}
		policy.AddIntent(update.Intent)
	case "remove_intent":
		if strings.TrimSpace(update.Intent) == "" {
			return fmt.Errorf("remove_intent requires an intent name")
		}
		policy.RemoveIntent(update.Intent)
	case "set_threshold":
		if update.Threshold == nil {
			return fmt.Errorf("set_threshold requires a threshold")
		}
		return policy.SetThreshold(*update.Threshold)
	default:
		return fmt.Errorf("unknown action: %s", update.Action)
	}
	return nil
}
