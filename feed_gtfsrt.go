package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"bustracker/internal/tracker"
)

// GtfsRtBusFeedSource reads a GTFS-Realtime VehiclePositions feed.
type GtfsRtBusFeedSource struct {
	url        string
	httpClient *http.Client
}

func NewGtfsRtBusFeedSource(url string, timeout time.Duration) *GtfsRtBusFeedSource {
	return &GtfsRtBusFeedSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *GtfsRtBusFeedSource) Fetch(ctx context.Context) ([]tracker.BusRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtfs-rt http status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var feed gtfs.FeedMessage
	if err := proto.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode gtfs-rt feed: %w", err)
	}
	records := make([]tracker.BusRecord, 0, len(feed.Entity))
	for _, ent := range feed.Entity {
		if ent == nil || ent.Vehicle == nil {
			continue
		}
		records = append(records, busRecordFromVehiclePosition(ent.Vehicle))
	}
	return records, nil
}

// busRecordFromVehiclePosition maps a vehicle position onto the bus record
// fields. Missing fields stay empty and are shown as Unknown.
func busRecordFromVehiclePosition(vp *gtfs.VehiclePosition) tracker.BusRecord {
	var r tracker.BusRecord

	route := vp.GetTrip().GetRouteId()
	if route == "" {
		route = vp.GetVehicle().GetLabel()
	}
	r.Route = tracker.WireString(route)

	if pos := vp.GetPosition(); pos != nil {
		if pos.Latitude != nil {
			r.Lat = tracker.WireString(strconv.FormatFloat(float64(*pos.Latitude), 'f', -1, 32))
		}
		if pos.Longitude != nil {
			r.Lon = tracker.WireString(strconv.FormatFloat(float64(*pos.Longitude), 'f', -1, 32))
		}
	}

	switch {
	case vp.StopId != nil && vp.CurrentStatus != nil:
		r.CurrentLocation = tracker.WireString(humanize(vp.GetCurrentStatus().String()) + " " + vp.GetStopId())
	case vp.StopId != nil:
		r.CurrentLocation = tracker.WireString(vp.GetStopId())
	}

	if ts := vp.GetTimestamp(); ts > 0 {
		r.PositionTime = tracker.WireString(time.Unix(int64(ts), 0).UTC().Format(time.RFC3339))
	}

	var status []string
	if vp.CongestionLevel != nil {
		status = append(status, humanize(vp.GetCongestionLevel().String()))
	}
	if vp.OccupancyStatus != nil {
		status = append(status, humanize(vp.GetOccupancyStatus().String()))
	}
	r.Deviation = tracker.WireString(strings.Join(status, ", "))
	return r
}

// humanize turns an enum name such as STOPPED_AT into "stopped at".
func humanize(enum string) string {
	return strings.ToLower(strings.ReplaceAll(enum, "_", " "))
}
