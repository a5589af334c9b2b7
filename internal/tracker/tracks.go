package tracker

import (
	"github.com/twpayne/go-polyline"
)

// Track summarises the vehicles of one route: how many are reporting and
// their positions as an encoded polyline. Vehicles without a usable position
// count but are left out of the polyline.
type Track struct {
	Vehicles int    `json:"vehicles"`
	Polyline string `json:"polyline"`
}

func buildTracks(legend []string, byRoute map[string][]*Marker) map[string]Track {
	tracks := make(map[string]Track, len(byRoute))
	for _, route := range legend {
		markers := byRoute[route]
		if len(markers) == 0 {
			continue
		}
		coords := make([][]float64, 0, len(markers))
		for _, m := range markers {
			if m.Lat.Finite() && m.Lon.Finite() {
				coords = append(coords, []float64{float64(m.Lat), float64(m.Lon)})
			}
		}
		tracks[route] = Track{
			Vehicles: len(markers),
			Polyline: string(polyline.EncodeCoords(coords)),
		}
	}
	return tracks
}
