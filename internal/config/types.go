package config

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port              int      `yaml:"port" validate:"gt=0,lte=65535"`
	StaticDir         string   `yaml:"staticDir"`
	AllowedOrigins    []string `yaml:"allowedOrigins" validate:"dive,required"`
	ShutdownTimeoutMS int      `yaml:"shutdownTimeoutMS" validate:"gte=0"`
}

// FeedConfig describes where bus positions come from
type FeedConfig struct {
	Kind              string `yaml:"kind" validate:"oneof=metrobus gtfsrt siri_json siri_xml"`
	URL               string `yaml:"url" validate:"required,url"`
	UserAgent         string `yaml:"userAgent"`
	RefreshIntervalMS int    `yaml:"refreshIntervalMS" validate:"gt=0"`
	TimeoutMS         int    `yaml:"timeoutMS" validate:"gte=0"`
}

// ClockConfig configures the wall-clock overlay
type ClockConfig struct {
	URL              string `yaml:"url" validate:"required,url"`
	PollIntervalMS   int    `yaml:"pollIntervalMS" validate:"gt=0"`
	TimeoutMS        int    `yaml:"timeoutMS" validate:"gte=0"`
	NoServiceMessage string `yaml:"noServiceMessage" validate:"required"`
}

// MapConfig contains the initial map view sent to pages
type MapConfig struct {
	CenterLat float64 `yaml:"centerLat" validate:"gte=-90,lte=90"`
	CenterLon float64 `yaml:"centerLon" validate:"gte=-180,lte=180"`
	Zoom      int     `yaml:"zoom" validate:"gte=0,lte=22"`
	FocusZoom int     `yaml:"focusZoom" validate:"gte=0,lte=22"`
}

// DisplayConfig contains countdown and highlight timings
type DisplayConfig struct {
	CountdownSeconds int `yaml:"countdownSeconds" validate:"gt=0"`
	CountdownTickMS  int `yaml:"countdownTickMS" validate:"gt=0"`
	HighlightMS      int `yaml:"highlightMS" validate:"gt=0"`
}

// SessionConfig bounds how many disconnected sessions are kept for resumption
type SessionConfig struct {
	MaxParked        int `yaml:"maxParked" validate:"gt=0"`
	ParkedTTLSeconds int `yaml:"parkedTTLSeconds" validate:"gt=0"`
}

// PublishConfig enables the optional refresh notifications over AMQP
type PublishConfig struct {
	AMQPURL      string `yaml:"amqpURL" validate:"omitempty,url"`
	Queue        string `yaml:"queue" validate:"required"`
	MessageTTLMS int    `yaml:"messageTTLMS" validate:"gte=0"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server   ServerConfig  `yaml:"server"`
	Feed     FeedConfig    `yaml:"feed"`
	Clock    ClockConfig   `yaml:"clock"`
	Map      MapConfig     `yaml:"map"`
	Display  DisplayConfig `yaml:"display"`
	Sessions SessionConfig `yaml:"sessions"`
	Publish  PublishConfig `yaml:"publish"`
}
