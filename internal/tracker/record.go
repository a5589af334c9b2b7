package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Unknown replaces every missing or empty text field of a bus record.
const Unknown = "Unknown"

// BusRecord is one vehicle as reported by the bus data endpoint.
type BusRecord struct {
	Route           WireString `json:"current_route"`
	Lat             WireString `json:"bus_lat"`
	Lon             WireString `json:"bus_lon"`
	CurrentLocation WireString `json:"current_location"`
	PositionTime    WireString `json:"position_time"`
	Deviation       WireString `json:"deviation"`
}

// WireString accepts a JSON string, number, boolean or null. Numbers keep
// their literal text so "47.56" and 47.56 parse the same way later.
type WireString string

func (w *WireString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*w = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*w = WireString(s)
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		// objects and arrays carry nothing we can display
		*w = ""
		return nil
	}
	*w = WireString(b)
	return nil
}

// Unit is a bus record made ready for display.
type Unit struct {
	Route        string `json:"route"`
	RouteNumber  string `json:"routeNumber"`
	Lat          Coord  `json:"lat"`
	Lon          Coord  `json:"lon"`
	Location     string `json:"location"`
	PositionTime string `json:"positionTime"`
	Status       string `json:"status"`
}

// RouteNumber is the part of a route identifier before the first '-'.
func RouteNumber(route string) string {
	if i := strings.IndexByte(route, '-'); i >= 0 {
		return route[:i]
	}
	return route
}

var numericPrefix = regexp.MustCompile(`^[+-]?(Infinity|[0-9]+\.?[0-9]*(?:[eE][+-]?[0-9]+)?|\.[0-9]+(?:[eE][+-]?[0-9]+)?)`)

// ParseCoordinate reads the longest numeric prefix of s, ignoring leading
// whitespace. Input without a numeric prefix yields NaN.
func ParseCoordinate(s string) float64 {
	m := numericPrefix.FindString(strings.TrimLeft(s, " \t\n\r"))
	if m == "" {
		return math.NaN()
	}
	switch strings.TrimLeft(m, "+-") {
	case "Infinity":
		if strings.HasPrefix(m, "-") {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// out of range values come back as ±Inf with an error
		if errors.Is(err, strconv.ErrRange) {
			return f
		}
		return math.NaN()
	}
	return f
}

// Normalize applies the Unknown defaults and derives the route number.
func Normalize(r BusRecord) Unit {
	route := orUnknown(r.Route)
	return Unit{
		Route:        route,
		RouteNumber:  RouteNumber(route),
		Lat:          Coord(ParseCoordinate(string(r.Lat))),
		Lon:          Coord(ParseCoordinate(string(r.Lon))),
		Location:     orUnknown(r.CurrentLocation),
		PositionTime: orUnknown(r.PositionTime),
		Status:       orUnknown(r.Deviation),
	}
}

func orUnknown(w WireString) string {
	if w == "" {
		return Unknown
	}
	return string(w)
}

// PanelLine renders one line of the raw-data panel.
func PanelLine(u Unit) string {
	return "Route: " + u.Route +
		" | Latitude: " + formatCoord(float64(u.Lat)) +
		" | Longitude: " + formatCoord(float64(u.Lon)) +
		" | Last Updated: " + u.PositionTime +
		" | Location: " + u.Location +
		" | Status: " + u.Status
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
