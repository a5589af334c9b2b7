package main

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bustracker/internal/tracker"
)

// SiriXmlBusFeedSource reads a SIRI VehicleMonitoring delivery encoded as XML.
type SiriXmlBusFeedSource struct {
	url        string
	httpClient *http.Client
}

func NewSiriXmlBusFeedSource(url string, timeout time.Duration) *SiriXmlBusFeedSource {
	return &SiriXmlBusFeedSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Streaming extraction, namespace tolerant via Name.Local.
func (s *SiriXmlBusFeedSource) Fetch(ctx context.Context) ([]tracker.BusRecord, error) {
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
		return nil, fmt.Errorf("siri xml http status: %d", resp.StatusCode)
	}
	return decodeSiriXml(resp.Body)
}

type siriXmlActivity struct {
	lineRef, lineName  string
	lat, lon           string
	stopName, destName string
	recordedAt, delay  string
}

func (a siriXmlActivity) record() tracker.BusRecord {
	route := a.lineRef
	if route == "" {
		route = a.lineName
	}
	location := a.stopName
	if location == "" {
		location = a.destName
	}
	return tracker.BusRecord{
		Route:           tracker.WireString(route),
		Lat:             tracker.WireString(a.lat),
		Lon:             tracker.WireString(a.lon),
		CurrentLocation: tracker.WireString(location),
		PositionTime:    tracker.WireString(a.recordedAt),
		Deviation:       tracker.WireString(a.delay),
	}
}

func decodeSiriXml(r io.Reader) ([]tracker.BusRecord, error) {
	dec := xml.NewDecoder(r)

	var (
		inVMD, inVA, inMVJ, inVL, inCall bool
		cur                              siriXmlActivity
		records                          []tracker.BusRecord
	)

	text := func(se xml.StartElement) string {
		var v string
		if err := dec.DecodeElement(&v, &se); err != nil {
			return ""
		}
		return strings.TrimSpace(v)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode siri xml feed: %w", err)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "VehicleMonitoringDelivery":
				inVMD = true
			case "VehicleActivity":
				if inVMD {
					inVA = true
					cur = siriXmlActivity{}
				}
			case "MonitoredVehicleJourney":
				if inVA {
					inMVJ = true
				}
			case "VehicleLocation":
				if inMVJ {
					inVL = true
				}
			case "MonitoredCall":
				if inMVJ {
					inCall = true
				}
			case "RecordedAtTime":
				if inVA && !inMVJ {
					cur.recordedAt = text(se)
				}
			case "LineRef":
				if inMVJ {
					cur.lineRef = text(se)
				}
			case "PublishedLineName":
				if inMVJ {
					cur.lineName = text(se)
				}
			case "DestinationName":
				if inMVJ && !inCall {
					cur.destName = text(se)
				}
			case "StopPointName":
				if inCall {
					cur.stopName = text(se)
				}
			case "Delay":
				if inMVJ && !inCall {
					cur.delay = text(se)
				}
			case "Latitude":
				if inVL {
					cur.lat = text(se)
				}
			case "Longitude":
				if inVL {
					cur.lon = text(se)
				}
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "VehicleLocation":
				inVL = false
			case "MonitoredCall":
				inCall = false
			case "MonitoredVehicleJourney":
				inMVJ = false
			case "VehicleActivity":
				if inVA {
					inVA = false
					records = append(records, cur.record())
				}
			case "VehicleMonitoringDelivery":
				inVMD = false
			}
		}
	}
	return records, nil
}
