package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"robottracker/engine"
	"robottracker/register"
)

// Observer event names, as the dashboard expects them.
const (
	evInitialSnapshot = "initial_robot_states"
	evNewRobot        = "new_robot_online"
	evRobotUpdate     = "robot_update"
	evRobotOffline    = "robot_offline"
	evSystemStatus    = "system-status"
	evKeepalive       = "keepalive"
)

type SSEEvent struct {
	Event string
	Data  string
	// Target limits delivery to one observer. Empty means everyone.
	Target register.ObserverID
}

// EventHub fans events out to connected observers. Broadcasts and targeted
// sends share one queue so every observer sees them in emission order.
type EventHub struct {
	mu        sync.RWMutex
	clients   map[register.ObserverID]chan SSEEvent
	broadcast chan SSEEvent
	stopChan  chan struct{}
	keepalive time.Duration
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[register.ObserverID]chan SSEEvent),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}, 1),
		keepalive: 30 * time.Second,
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	select {
	case h.stopChan <- struct{}{}:
	default:
	}
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.mu.RLock()
			if evt.Target != "" {
				if ch, ok := h.clients[evt.Target]; ok {
					deliver(ch, evt)
				}
			} else {
				for _, ch := range h.clients {
					deliver(ch, evt)
				}
			}
			h.mu.RUnlock()
		case <-keepalive.C:
			h.mu.RLock()
			for _, ch := range h.clients {
				deliver(ch, SSEEvent{Event: evKeepalive, Data: "ping"})
			}
			h.mu.RUnlock()
		}
	}
}

// deliver drops the event if the observer is not keeping up.
func deliver(ch chan SSEEvent, evt SSEEvent) {
	select {
	case ch <- evt:
	default:
	}
}

func (h *EventHub) Broadcast(event, data string) {
	h.enqueue(SSEEvent{Event: event, Data: data})
}

// SendTo queues an event for a single observer.
func (h *EventHub) SendTo(id register.ObserverID, event, data string) {
	h.enqueue(SSEEvent{Event: event, Data: data, Target: id})
}

func (h *EventHub) enqueue(evt SSEEvent) {
	select {
	case h.broadcast <- evt:
	default:
		log.Printf("sse: hub queue full, dropping %s", evt.Event)
	}
}

// AddClient registers a new observer and returns its ID and event channel.
func (h *EventHub) AddClient() (register.ObserverID, chan SSEEvent) {
	id := register.ObserverID(uuid.New().String())
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *EventHub) RemoveClient(id register.ObserverID) {
	h.mu.Lock()
	ch, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("sse: encode event: %v", err)
		return "{}"
	}
	return string(data)
}

// SetupEngineListeners wires engine events to observer pushes.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast(evNewRobot, mustJSON(evt.Payload.(engine.RobotOnlineEvent).State))
	}, engine.EventRobotOnline)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast(evRobotUpdate, mustJSON(evt.Payload.(engine.RobotUpdatedEvent).State))
	}, engine.EventRobotUpdated)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.RobotOfflineEvent)
		h.Broadcast(evRobotOffline, mustJSON(map[string]string{"robot_id": ev.RobotID}))
	}, engine.EventRobotOffline)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.InitialSnapshotEvent)
		h.SendTo(ev.Target, evInitialSnapshot, mustJSON(ev.Robots))
	}, engine.EventInitialSnapshot)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast(evSystemStatus, `{"messaging":"connected"}`)
	}, engine.EventMessagingConnected)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast(evSystemStatus, `{"messaging":"disconnected"}`)
	}, engine.EventMessagingDisconnected)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.TrackerReconfiguredEvent)
		h.Broadcast(evSystemStatus, mustJSON(map[string]string{
			"sweep_interval":     ev.SweepInterval.String(),
			"inactivity_timeout": ev.InactivityTimeout.String(),
			"position_format":    ev.PositionFormat,
		}))
	}, engine.EventTrackerReconfigured)
}

// SSEHandler serves the SSE endpoint. The observer is registered before the
// snapshot is requested so no update committed after the snapshot is missed.
func (h *Handlers) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := h.eventHub.AddClient()
	defer h.eventHub.RemoveClient(id)
	h.engine.ObserverConnected(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				log.Printf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
