package main

import "fireflies/astar"

// Client -> Server message types
const (
	MsgClientParams = "client_params"
)

// Server -> Client message types
const (
	MsgFrame = "frame"
	MsgError = "error"
)

// Frame encodings a client may request
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// ClientParams is sent by a client to choose the region it watches.
type ClientParams struct {
	Type     string  `json:"type" msgpack:"type"`
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	Radius   float64 `json:"radius" msgpack:"radius"`
	Encoding string  `json:"encoding,omitempty" msgpack:"encoding,omitempty"`
}

// Point is a world position.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// FireflyView is the public state of one firefly.
type FireflyView struct {
	ID       int     `json:"id" msgpack:"id"`
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	Phase    float64 `json:"phase" msgpack:"phase"`
	Flashing bool    `json:"flashing" msgpack:"flashing"`
	Distance float64 `json:"distance" msgpack:"distance"`
}

// Frame is broadcast to each websocket client every broadcast interval.
type Frame struct {
	Type      string        `json:"type" msgpack:"type"`
	Tick      int           `json:"tick" msgpack:"tick"`
	Center    Point         `json:"center" msgpack:"center"`
	Radius    float64       `json:"radius" msgpack:"radius"`
	Count     int           `json:"count" msgpack:"count"`
	Fireflies []FireflyView `json:"fireflies" msgpack:"fireflies"`
	Time      int64         `json:"time" msgpack:"time"` // Timestamp in milliseconds
}

// NearbyResponse is the JSON response of /api/nearby
type NearbyResponse struct {
	Center    Point         `json:"center"`
	Radius    float64       `json:"radius"`
	Count     int           `json:"count"`
	Fireflies []FireflyView `json:"fireflies"`
}

// Path search outcomes reported by /api/path
const (
	PathOK             = "ok"
	PathNoPath         = "no_path"
	PathIterationLimit = "iteration_limit"
)

// PathResponse is the JSON response of /api/path
type PathResponse struct {
	Status   string       `json:"status"`
	Start    astar.Cell   `json:"start"`
	Goal     astar.Cell   `json:"goal"`
	Length   int          `json:"length"`
	Expanded int          `json:"expanded"`
	Path     []astar.Cell `json:"path,omitempty"`
}

// ErrorResponse carries a request error.
type ErrorResponse struct {
	Type  string `json:"type,omitempty"`
	Error string `json:"error"`
}
