package adsb

import (
	"github.com/yegors/co-radar/internal/websocket"
	"github.com/yegors/co-radar/pkg/logger"
)

// WebSocketHandler handles incoming WebSocket messages for ADSB data
type WebSocketHandler struct {
	service *Service
	logger  *logger.Logger
}

// NewWebSocketHandler creates a new WebSocket message handler
func NewWebSocketHandler(service *Service, logger *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		service: service,
		logger:  logger.Named("adsb-ws-handler"),
	}
}

// HandleMessage handles incoming WebSocket messages
func (h *WebSocketHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeAircraftBulkRequest:
		return h.handleBulkRequest(client, data)
	case websocket.MessageTypeFilterUpdate:
		return h.handleFilterUpdate(client, data)
	default:
		h.logger.Debug("Unhandled message type", logger.String("type", messageType))
		return nil
	}
}

// handleBulkRequest answers with every aircraft matching the request's
// filters and optional bounds
func (h *WebSocketHandler) handleBulkRequest(client *websocket.Client, data map[string]any) error {
	filters, _ := data["filters"].(map[string]any)
	cf := ParseClientFilters(filters)
	bounds := parseBounds(data["bounds"])

	response := h.service.HandleBulkRequest(FilterFromClient(cf), bounds)
	return h.sendToClient(client, bulkMessage(response))
}

// handleFilterUpdate stores the client's filters and replies with the
// matching aircraft
func (h *WebSocketHandler) handleFilterUpdate(client *websocket.Client, data map[string]any) error {
	filters := ParseClientFilters(data)
	client.UpdateFilters(filters)

	h.logger.Debug("Updated client filters",
		logger.Bool("military_only", filters.MilitaryOnly),
		logger.Strings("sources", filters.Sources),
		logger.String("selected_hex", filters.SelectedHex))

	response := h.service.HandleBulkRequest(FilterFromClient(filters), nil)
	return h.sendToClient(client, bulkMessage(response))
}

func bulkMessage(response *AircraftBulkResponse) *websocket.Message {
	return &websocket.Message{
		Type: websocket.MessageTypeAircraftBulkResponse,
		Data: map[string]any{
			"aircraft": response.Aircraft,
			"count":    response.Count,
			"stats":    response.Stats,
		},
	}
}

// sendToClient sends a message to a specific client
func (h *WebSocketHandler) sendToClient(client *websocket.Client, message *websocket.Message) error {
	if !client.SendMessage(message) {
		h.logger.Warn("Client send channel full, dropping message", logger.String("type", message.Type))
	}
	return nil
}

// ParseClientFilters reads filter fields from a decoded JSON object
func ParseClientFilters(data map[string]any) *websocket.ClientFilters {
	var f websocket.ClientFilters
	if data == nil {
		return &f
	}
	if v, ok := data["military_only"].(bool); ok {
		f.MilitaryOnly = v
	}
	if list, ok := data["sources"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				f.Sources = append(f.Sources, s)
			}
		}
	}
	if v, ok := data["altitude_min"].(float64); ok {
		f.AltitudeMin = &v
	}
	if v, ok := data["altitude_max"].(float64); ok {
		f.AltitudeMax = &v
	}
	if v, ok := data["selected_hex"].(string); ok {
		f.SelectedHex = v
	}
	return &f
}

func parseBounds(v any) *Bounds {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	var b Bounds
	for key, dst := range map[string]*float64{
		"min_lon": &b.MinLon,
		"min_lat": &b.MinLat,
		"max_lon": &b.MaxLon,
		"max_lat": &b.MaxLat,
	} {
		f, ok := m[key].(float64)
		if !ok {
			return nil
		}
		*dst = f
	}
	return &b
}
