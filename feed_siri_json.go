package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"bustracker/internal/tracker"
)

// SiriJsonBusFeedSource reads a SIRI VehicleMonitoring delivery encoded as JSON.
type SiriJsonBusFeedSource struct {
	url        string
	httpClient *http.Client
}

func NewSiriJsonBusFeedSource(url string, timeout time.Duration) *SiriJsonBusFeedSource {
	return &SiriJsonBusFeedSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *SiriJsonBusFeedSource) Fetch(ctx context.Context) ([]tracker.BusRecord, error) {
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
		return nil, fmt.Errorf("siri json http status: %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Siri?.ServiceDelivery.VehicleMonitoringDelivery[].VehicleActivity[]
	var root map[string]any
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, fmt.Errorf("decode siri json feed: %w", err)
	}
	if siri, ok := root["Siri"].(map[string]any); ok && siri != nil {
		root = siri
	}
	sd, _ := root["ServiceDelivery"].(map[string]any)
	vmdArr, _ := sd["VehicleMonitoringDelivery"].([]any)
	records := make([]tracker.BusRecord, 0, 256)
	for _, vmdAny := range vmdArr {
		vmd, _ := vmdAny.(map[string]any)
		vaArr, _ := vmd["VehicleActivity"].([]any)
		for _, vaAny := range vaArr {
			va, _ := vaAny.(map[string]any)
			mvj, _ := va["MonitoredVehicleJourney"].(map[string]any)
			if mvj == nil {
				continue
			}
			route := textFrom(mvj["LineRef"])
			if route == "" {
				route = textFrom(mvj["PublishedLineName"])
			}
			location := textFromNested(mvj, "MonitoredCall", "StopPointName")
			if location == "" {
				location = textFrom(mvj["DestinationName"])
			}
			records = append(records, tracker.BusRecord{
				Route:           tracker.WireString(route),
				Lat:             tracker.WireString(textFromNested(mvj, "VehicleLocation", "Latitude")),
				Lon:             tracker.WireString(textFromNested(mvj, "VehicleLocation", "Longitude")),
				CurrentLocation: tracker.WireString(location),
				PositionTime:    tracker.WireString(textFrom(va["RecordedAtTime"])),
				Deviation:       tracker.WireString(textFrom(mvj["Delay"])),
			})
		}
	}
	return records, nil
}

// textFrom reads a SIRI value that may be a plain string or number, a
// {"value": ...} object or a list of those (first element wins).
func textFrom(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		return textFrom(t["value"])
	case []any:
		if len(t) > 0 {
			return textFrom(t[0])
		}
	}
	return ""
}

func textFromNested(m map[string]any, k1, k2 string) string {
	m1, _ := m[k1].(map[string]any)
	return textFrom(m1[k2])
}
