package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// duration accepts "5s"-style strings in JSON bodies.
type duration time.Duration

func (d *duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\"")
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

type trackerConfigRequest struct {
	SweepInterval     *duration `json:"sweep_interval"`
	InactivityTimeout *duration `json:"inactivity_timeout"`
	PositionFormat    *string   `json:"position_format"`
}

type messagingConfigRequest struct {
	Backend      *string  `json:"backend"`
	MQTTBroker   *string  `json:"mqtt_broker"`
	MQTTPort     *int     `json:"mqtt_port"`
	KafkaBrokers []string `json:"kafka_brokers"`
}

func (h *Handlers) apiGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.engine.AppConfig()
	cfg.RLock()
	defer cfg.RUnlock()
	h.jsonOK(w, map[string]any{
		"tracker": map[string]string{
			"sweep_interval":     cfg.Tracker.SweepInterval.String(),
			"inactivity_timeout": cfg.Tracker.InactivityTimeout.String(),
			"position_format":    cfg.Tracker.PositionFormat,
		},
		"messaging": map[string]any{
			"backend":            cfg.Messaging.Backend,
			"mqtt_broker":        fmt.Sprintf("%s:%d", cfg.Messaging.MQTT.Broker, cfg.Messaging.MQTT.Port),
			"kafka_brokers":      cfg.Messaging.Kafka.Brokers,
			"reports_topic":      cfg.Messaging.ReportsTopic,
			"events_topic":       cfg.Messaging.EventsTopic,
			"reply_topic_prefix": cfg.Messaging.ReplyTopicPrefix,
		},
		"redis": map[string]any{
			"enabled": cfg.Redis.Enabled,
			"address": cfg.Redis.Address,
		},
		"database": cfg.Database.Driver,
	})
}

func (h *Handlers) apiSaveTrackerConfig(w http.ResponseWriter, r *http.Request) {
	var req trackerConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	cfg := h.engine.AppConfig()
	cfg.Lock()
	next := cfg.Tracker
	if req.SweepInterval != nil {
		next.SweepInterval = time.Duration(*req.SweepInterval)
	}
	if req.InactivityTimeout != nil {
		next.InactivityTimeout = time.Duration(*req.InactivityTimeout)
	}
	if req.PositionFormat != nil {
		next.PositionFormat = *req.PositionFormat
	}
	if err := next.Validate(); err != nil {
		cfg.Unlock()
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	old := cfg.Tracker
	cfg.Tracker = next
	cfg.Unlock()

	if err := h.engine.ReconfigureTracker(); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.saveConfig("tracker")
	if db := h.engine.DB(); db != nil {
		db.AppendAudit("config", "tracker", "updated",
			fmt.Sprintf("%s/%s/%s", old.SweepInterval, old.InactivityTimeout, old.PositionFormat),
			fmt.Sprintf("%s/%s/%s", next.SweepInterval, next.InactivityTimeout, next.PositionFormat),
			h.getUsername(r))
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiSaveMessagingConfig(w http.ResponseWriter, r *http.Request) {
	var req messagingConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Backend != nil {
		switch *req.Backend {
		case "none", "mqtt", "kafka":
		default:
			h.jsonError(w, "backend must be none, mqtt or kafka", http.StatusBadRequest)
			return
		}
	}

	cfg := h.engine.AppConfig()
	cfg.Lock()
	if req.Backend != nil {
		cfg.Messaging.Backend = *req.Backend
	}
	if req.MQTTBroker != nil {
		cfg.Messaging.MQTT.Broker = *req.MQTTBroker
	}
	if req.MQTTPort != nil {
		cfg.Messaging.MQTT.Port = *req.MQTTPort
	}
	if req.KafkaBrokers != nil {
		cfg.Messaging.Kafka.Brokers = req.KafkaBrokers
	}
	cfg.Unlock()

	h.engine.ReconfigureMessaging()
	h.saveConfig("messaging")
	h.jsonOK(w, map[string]any{"status": "ok", "connected": h.engine.MsgClient().IsConnected()})
}

// saveConfig persists the config when it was loaded from a file.
func (h *Handlers) saveConfig(section string) {
	path := h.engine.ConfigPath()
	if path == "" {
		return
	}
	if err := h.engine.AppConfig().Save(path); err != nil {
		log.Printf("config: save error: %v", err)
		return
	}
	log.Printf("config: %s section saved", section)
}
