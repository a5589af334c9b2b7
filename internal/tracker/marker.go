package tracker

import (
	"math"
	"strconv"

	"github.com/google/uuid"
)

// Coord is a latitude or longitude. Values that are not finite encode as JSON
// null and the page leaves the marker at an undefined position.
type Coord float64

func (c Coord) MarshalJSON() ([]byte, error) {
	f := float64(c)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

// Finite reports whether the coordinate can be placed on a map.
func (c Coord) Finite() bool {
	f := float64(c)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Icon names the marker style the page should draw.
type Icon string

const (
	IconPin       Icon = "pin"
	IconHighlight Icon = "pin-highlight"
)

// Popup is the text bound to a marker.
type Popup struct {
	Route    string `json:"route"`
	Location string `json:"location"`
	Updated  string `json:"updated"`
	Status   string `json:"status"`
}

// Marker is one vehicle drawn on the map.
type Marker struct {
	ID          string `json:"id"`
	Route       string `json:"route"`
	RouteNumber string `json:"routeNumber"`
	Lat         Coord  `json:"lat"`
	Lon         Coord  `json:"lon"`
	Badge       string `json:"badge"`
	Popup       Popup  `json:"popup"`
	Icon        Icon   `json:"icon"`
}

func newMarker(u Unit) *Marker {
	return &Marker{
		ID:          uuid.NewString(),
		Route:       u.Route,
		RouteNumber: u.RouteNumber,
		Lat:         u.Lat,
		Lon:         u.Lon,
		Badge:       u.RouteNumber,
		Popup: Popup{
			Route:    u.Route,
			Location: u.Location,
			Updated:  u.PositionTime,
			Status:   u.Status,
		},
		Icon: IconPin,
	}
}
