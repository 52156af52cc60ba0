package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoRouteID is returned when neither entry.routeIds nor references.routes names a route.
var ErrNoRouteID = errors.New("no route id in response")

// ErrMissingEntry is returned when a schedule response has no data.entry object.
var ErrMissingEntry = errors.New("response has no data.entry")

// ErrMissingAlerts is returned when an alert response has no data.references.alerts object.
var ErrMissingAlerts = errors.New("response has no data.references.alerts")

// FlexBool decodes both JSON booleans and their string spellings.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "true":
		*b = true
	case "false", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// StopTime is one trip's timing at one stop. Every timing field is optional
// and in epoch seconds.
type StopTime struct {
	StopID                 string `json:"stopId,omitempty"`
	TripID                 string `json:"tripId"`
	StopHeadsign           string `json:"stopHeadsign,omitempty"`
	ArrivalTime            *int64 `json:"arrivalTime,omitempty"`
	DepartureTime          *int64 `json:"departureTime,omitempty"`
	PredictedArrivalTime   *int64 `json:"predictedArrivalTime,omitempty"`
	PredictedDepartureTime *int64 `json:"predictedDepartureTime,omitempty"`
	Uncertain              *bool  `json:"uncertain,omitempty"`
}

// IsUncertain treats a missing flag as certain.
func (st StopTime) IsUncertain() bool {
	return st.Uncertain != nil && *st.Uncertain
}

type ArrivalsEntry struct {
	ID        string     `json:"id,omitempty"`
	RouteIDs  []string   `json:"routeIds,omitempty"`
	StopID    string     `json:"stopId,omitempty"`
	StopTimes []StopTime `json:"stopTimes,omitempty"`
	AlertIDs  []string   `json:"alertIds,omitempty"`
}

type AlertRoute struct {
	RouteID    string   `json:"routeId"`
	EffectType string   `json:"effectType"`
	StopIDs    []string `json:"stopIds,omitempty"`
}

type Alert struct {
	ID     string       `json:"id"`
	Start  int64        `json:"start"`
	End    int64        `json:"end,omitempty"`
	Routes []AlertRoute `json:"routes"`
}

// KeyOrder records the keys of a JSON object in document order and
// discards the values.
type KeyOrder []string

func (k *KeyOrder) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*k = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return err
		}
		keys = append(keys, key)
	}
	*k = keys
	return nil
}

type References struct {
	Routes KeyOrder         `json:"routes,omitempty"`
	Alerts map[string]Alert `json:"alerts,omitempty"`
}

type ArrivalsData struct {
	LimitExceeded FlexBool       `json:"limitExceeded"`
	Entry         *ArrivalsEntry `json:"entry,omitempty"`
	References    *References    `json:"references,omitempty"`
}

// ArrivalsResponse is the body of arrivals-and-departures-for-stop and
// route-details calls, reduced to the fields the display reads.
type ArrivalsResponse struct {
	Code        int           `json:"code"`
	CurrentTime int64         `json:"currentTime"`
	Text        string        `json:"text"`
	Version     int           `json:"version"`
	Data        *ArrivalsData `json:"data,omitempty"`
}

// Entry returns data.entry or ErrMissingEntry.
func (r *ArrivalsResponse) Entry() (*ArrivalsEntry, error) {
	if r == nil || r.Data == nil || r.Data.Entry == nil {
		return nil, ErrMissingEntry
	}
	return r.Data.Entry, nil
}

// LimitExceeded reports the upstream result-limit flag.
func (r *ArrivalsResponse) LimitExceeded() bool {
	return r != nil && r.Data != nil && bool(r.Data.LimitExceeded)
}

// RouteID is the first of entry.routeIds, falling back to the first route in
// references.routes.
func (r *ArrivalsResponse) RouteID() (string, error) {
	entry, err := r.Entry()
	if err != nil {
		return "", err
	}
	if len(entry.RouteIDs) > 0 && entry.RouteIDs[0] != "" {
		return entry.RouteIDs[0], nil
	}
	if refs := r.Data.References; refs != nil && len(refs.Routes) > 0 {
		return refs.Routes[0], nil
	}
	return "", ErrNoRouteID
}

// Alerts returns data.references.alerts or ErrMissingAlerts.
func (r *ArrivalsResponse) Alerts() (map[string]Alert, error) {
	if r == nil || r.Data == nil || r.Data.References == nil || r.Data.References.Alerts == nil {
		return nil, ErrMissingAlerts
	}
	return r.Data.References.Alerts, nil
}

// HasAlerts reports whether entry.alertIds is non-empty.
func (r *ArrivalsResponse) HasAlerts() bool {
	entry, err := r.Entry()
	return err == nil && len(entry.AlertIDs) > 0
}
