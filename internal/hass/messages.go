package hass

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dokzlo13/wledbridge/internal/color"
)

// Message types of the Home Assistant websocket API
const (
	TypeAuthRequired = "auth_required"
	TypeAuth         = "auth"
	TypeAuthOK       = "auth_ok"
	TypeAuthInvalid  = "auth_invalid"
	TypeGetStates    = "get_states"
	TypeCallService  = "call_service"
	TypeResult       = "result"
)

// Service addressed by color commands
const (
	DomainLight   = "light"
	ServiceTurnOn = "turn_on"
	entityPrefix  = DomainLight + "."
)

// Inbound is any message received from the hub.
type Inbound struct {
	ID        int             `json:"id,omitempty"`
	Type      string          `json:"type"`
	Success   bool            `json:"success,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ResultError    `json:"error,omitempty"`
	Message   string          `json:"message,omitempty"`
	HAVersion string          `json:"ha_version,omitempty"`
}

// ResultError is the error body of a failed command.
type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AuthMessage carries the long-lived access token.
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// GetStatesMessage requests every entity state.
type GetStatesMessage struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

// CallServiceMessage invokes a hub service.
type CallServiceMessage struct {
	ID          int         `json:"id"`
	Type        string      `json:"type"`
	Domain      string      `json:"domain"`
	Service     string      `json:"service"`
	Target      Target      `json:"target"`
	ServiceData ServiceData `json:"service_data"`
}

// Target selects the entity a service acts on.
type Target struct {
	EntityID string `json:"entity_id"`
}

// ServiceData for light.turn_on. Transition is always sent, zero means instant.
type ServiceData struct {
	RGBColor   []int   `json:"rgb_color"`
	Transition float64 `json:"transition"`
}

// EntityState is one element of a get_states result.
type EntityState struct {
	EntityID   string           `json:"entity_id"`
	State      string           `json:"state"`
	Attributes EntityAttributes `json:"attributes"`
}

// EntityAttributes holds the attributes relevant to color comparison.
type EntityAttributes struct {
	RGBColor     []float64 `json:"rgb_color"`
	FriendlyName string    `json:"friendly_name,omitempty"`
}

// Color returns the reported color, false if the light reports none (e.g. off).
func (e *EntityState) Color() (color.RGB, bool) {
	return color.FromInts(e.Attributes.RGBColor)
}

// EntityID maps a configured light name to a hub entity id.
// Names that already carry a domain are used as-is.
func EntityID(light string) string {
	if strings.Contains(light, ".") {
		return light
	}
	return entityPrefix + light
}
