package types

type ConfigMessage struct {
	Type        string   `json:"type"`
	Filters     []string `json:"filters"`
	Filter      string   `json:"filter"`
	Source      string   `json:"source"`
	JPEGQuality int      `json:"jpeg_quality"`
}

type FilterSelection struct {
	Type   string `json:"type"`
	Filter string `json:"filter"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ControlMessage is any text message a browser sends on the websocket.
type ControlMessage struct {
	Type   string `json:"type"`
	Filter string `json:"filter,omitempty"`
}
