package api

import (
	"time"

	"github.com/dokzlo13/wledbridge/internal/device"
)

// Values reported by the emulated controller that have no configuration knob.
const (
	codeName      = "Kōsen"
	framesPerSec  = 32
	maxSegments   = 32
	wifiBSSID     = "D4:DA:21:75:00:00"
	wifiRSSI      = -60
	wifiSignal    = 100
	wifiChannel   = 1
	liveSegmentID = -1
)

// Info mirrors the controller's /json/info document.
type Info struct {
	Version   string   `json:"ver"`
	VersionID int      `json:"vid"`
	CodeName  string   `json:"cn"`
	Release   string   `json:"release"`
	LEDs      LEDInfo  `json:"leds"`
	Name      string   `json:"name"`
	UDPPort   int      `json:"udpport"`
	Live      bool     `json:"live"`
	LiveSeg   int      `json:"liveseg"`
	WiFi      WiFiInfo `json:"wifi"`
	Arch      string   `json:"arch"`
	Brand     string   `json:"brand"`
	Product   string   `json:"product"`
	MAC       string   `json:"mac"`
	IP        string   `json:"ip"`
	Uptime    int64    `json:"uptime"`
}

// LEDInfo describes the (single) emulated LED output.
type LEDInfo struct {
	Count      int   `json:"count"`
	Power      int   `json:"pwr"`
	FPS        int   `json:"fps"`
	MaxPower   int   `json:"maxpwr"`
	MaxSeg     int   `json:"maxseg"`
	BootPreset int   `json:"bootps"`
	SegLC      []int `json:"seglc"`
	LC         int   `json:"lc"`
	RGBW       bool  `json:"rgbw"`
	WV         int   `json:"wv"`
	CCT        int   `json:"cct"`
}

// WiFiInfo is a fixed, healthy-looking link report.
type WiFiInfo struct {
	BSSID   string `json:"bssid"`
	RSSI    int    `json:"rssi"`
	Signal  int    `json:"signal"`
	Channel int    `json:"channel"`
	AP      bool   `json:"ap"`
}

// State mirrors the controller's /json/state document.
type State struct {
	On         bool      `json:"on"`
	Brightness uint8     `json:"bri"`
	Live       bool      `json:"live"`
	Segments   []Segment `json:"seg"`
}

// Segment covers the whole strip.
type Segment struct {
	ID    int `json:"id"`
	Start int `json:"start"`
	Stop  int `json:"stop"`
	Len   int `json:"len"`
}

// StateUpdate is the subset of a pushed state the bridge honours.
type StateUpdate struct {
	On         *bool `json:"on,omitempty"`
	Brightness *int  `json:"bri,omitempty"`
}

// Document is the combined /json response.
type Document struct {
	State State `json:"state"`
	Info  Info  `json:"info"`
}

func buildInfo(id device.Identity, status *device.Status, now time.Time) Info {
	return Info{
		Version:   "<b>" + device.FirmwareLabel + "</b>",
		VersionID: device.VersionID,
		CodeName:  codeName,
		Release:   device.Release,
		LEDs: LEDInfo{
			Count:  id.LEDCount,
			FPS:    framesPerSec,
			MaxSeg: maxSegments,
			SegLC:  []int{1},
			LC:     1,
		},
		Name:    id.Name,
		UDPPort: id.RealtimePort,
		Live:    status.Live(now),
		LiveSeg: liveSegmentID,
		WiFi: WiFiInfo{
			BSSID:   wifiBSSID,
			RSSI:    wifiRSSI,
			Signal:  wifiSignal,
			Channel: wifiChannel,
		},
		Arch:    device.VendorLabel,
		Brand:   device.Brand,
		Product: device.Product,
		MAC:     id.MAC,
		IP:      id.IP.String(),
		Uptime:  status.Uptime(now),
	}
}

func buildState(id device.Identity, status *device.Status, now time.Time) State {
	return State{
		On:         status.On(),
		Brightness: status.Brightness(),
		Live:       status.Live(now),
		Segments: []Segment{
			{ID: 0, Start: 0, Stop: id.LEDCount, Len: id.LEDCount},
		},
	}
}
