package domain

import (
	"time"
)

// ConnectionState tracks where a virtual client is in its lifecycle.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "DISCONNECTED"
	StateConnecting   ConnectionState = "CONNECTING"
	StateConnected    ConnectionState = "CONNECTED"
	StateFailed       ConnectionState = "FAILED"
)

// Credentials are the opaque connection parameters for the realtime endpoint.
type Credentials struct {
	URL    string `json:"url" mapstructure:"REALTIME_URL"`
	APIKey string `json:"-" mapstructure:"REALTIME_API_KEY"` // Never expose the key in reports
}

// Config is the immutable per-scenario input for one load test run.
type Config struct {
	UserCount               int         `json:"userCount"`
	DurationSeconds         int         `json:"durationSeconds"`
	RampUpSeconds           int         `json:"rampUpSeconds"`
	ActivityIntervalSeconds int         `json:"activityIntervalSeconds"`
	BroadcastProbability    float64     `json:"broadcastProbability"`
	Credentials             Credentials `json:"credentials"`
	ChannelID               string      `json:"channelId"`
	Verbose                 bool        `json:"verbose"`
	LogMessages             bool        `json:"logMessages"`
}

// Validate checks the configuration before any client is created.
// It returns a *ConfigurationError naming the first invalid field.
func (c Config) Validate() error {
	if c.Credentials.URL == "" {
		return &ConfigurationError{Field: "credentials.url", Reason: "realtime endpoint URL is required (set REALTIME_URL or --url)"}
	}
	if c.Credentials.APIKey == "" {
		return &ConfigurationError{Field: "credentials.apiKey", Reason: "realtime API key is required (set REALTIME_API_KEY or --api-key)"}
	}
	if c.ChannelID == "" {
		return &ConfigurationError{Field: "channelId", Reason: "target channel id is required (set TEST_CHANNEL_ID or --channel)"}
	}
	if c.UserCount <= 0 {
		return &ConfigurationError{Field: "userCount", Reason: "must be greater than zero"}
	}
	if c.RampUpSeconds < 0 {
		return &ConfigurationError{Field: "rampUpSeconds", Reason: "must not be negative"}
	}
	if c.DurationSeconds <= c.RampUpSeconds {
		return &ConfigurationError{Field: "durationSeconds", Reason: "must be greater than rampUpSeconds"}
	}
	if c.ActivityIntervalSeconds <= 0 {
		return &ConfigurationError{Field: "activityIntervalSeconds", Reason: "must be greater than zero"}
	}
	if c.BroadcastProbability < 0 || c.BroadcastProbability > 1 {
		return &ConfigurationError{Field: "broadcastProbability", Reason: "must be between 0 and 1"}
	}
	return nil
}

// PresenceState is the payload a client announces on its presence channel.
type PresenceState struct {
	ParticipantID  string    `json:"participantId"`
	DisplayName    string    `json:"displayName"`
	CurrentSection string    `json:"currentSection"`
	LastActiveAt   time.Time `json:"lastActiveAt"`
}

// PresenceEventKind distinguishes the notifications a presence channel delivers.
type PresenceEventKind string

const (
	PresenceSync  PresenceEventKind = "sync"
	PresenceJoin  PresenceEventKind = "join"
	PresenceLeave PresenceEventKind = "leave"
)

// PresenceEvent is a presence notification delivered to a subscribed client.
type PresenceEvent struct {
	Kind PresenceEventKind
}

// BroadcastMessage is an inbound message on a broadcast channel.
type BroadcastMessage struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// ClientError is one recorded per-client failure. Per-client errors are data,
// not control flow: they are appended here and reflected in the statistics.
type ClientError struct {
	Kind      string    `json:"kind"` // "connection", "activity" or "disconnection"
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ErrorKindConnection    = "connection"
	ErrorKindActivity      = "activity"
	ErrorKindDisconnection = "disconnection"
)

// ClientMetrics is the immutable snapshot of one virtual client's counters,
// safe to read once the owning client has reached a terminal phase.
type ClientMetrics struct {
	ClientID         string          `json:"clientId"`
	DisplayName      string          `json:"displayName"`
	State            ConnectionState `json:"state"`
	ConnectionTimeMs int64           `json:"connectionTimeMs"`
	MessagesSent     int64           `json:"messagesSent"`
	MessagesReceived int64           `json:"messagesReceived"`
	PresenceUpdates  int64           `json:"presenceUpdates"`
	Errors           []ClientError   `json:"errors"`
	StartedAt        time.Time       `json:"startedAt"`
	EndedAt          time.Time       `json:"endedAt"`
	TotalDurationMs  int64           `json:"totalDurationMs"`
	ErrorCount       int             `json:"errorCount"`
}

// RunMetrics is the aggregate record of one load test run, owned by the
// phase controller. UserMetrics is populated only after all clients finish.
type RunMetrics struct {
	TotalUsers            int             `json:"totalUsers"`
	SuccessfulConnections int             `json:"successfulConnections"`
	FailedConnections     int             `json:"failedConnections"`
	StartTime             time.Time       `json:"startTime"`
	EndTime               time.Time       `json:"endTime"`
	UserMetrics           []ClientMetrics `json:"userMetrics"`
}

// Statistics is the pure reduction of RunMetrics computed by the aggregator.
// Never mutated after creation.
type Statistics struct {
	AvgConnectionTimeMs   float64 `json:"avgConnectionTimeMs"`
	MinConnectionTimeMs   int64   `json:"minConnectionTimeMs"`
	MaxConnectionTimeMs   int64   `json:"maxConnectionTimeMs"`
	TotalMessagesSent     int64   `json:"totalMessagesSent"`
	TotalMessagesReceived int64   `json:"totalMessagesReceived"`
	TotalPresenceUpdates  int64   `json:"totalPresenceUpdates"`
	TotalErrors           int64   `json:"totalErrors"`
	MessagesPerSecond     float64 `json:"messagesPerSecond"`
	AvgMessagesPerUser    float64 `json:"avgMessagesPerUser"`
}

// Verdict is the capacity classification of a completed run.
type Verdict string

const (
	VerdictExcellent  Verdict = "EXCELLENT"
	VerdictAcceptable Verdict = "ACCEPTABLE"
	VerdictPoor       Verdict = "POOR"
)

// Assessment is the verdict plus the rates and capacity recommendation
// derived from one run's statistics.
type Assessment struct {
	Verdict             Verdict `json:"verdict"`
	SuccessRate         float64 `json:"successRate"` // percent
	ErrorRate           float64 `json:"errorRate"`   // percent
	SafeUserCount       int     `json:"safeUserCount"`
	RecommendedMaxUsers int     `json:"recommendedMaxUsers,omitempty"`
}

// Scenario names one batch entry.
type Scenario struct {
	Name   string `json:"name"`
	Config Config `json:"config"`
}

// ScenarioResult records the outcome of one scenario in a batch run.
// Immutable after creation; batch results keep run order.
type ScenarioResult struct {
	ScenarioName string      `json:"scenarioName"`
	Config       Config      `json:"config"`
	Success      bool        `json:"success"`
	Statistics   *Statistics `json:"statistics,omitempty"`
	Assessment   *Assessment `json:"assessment,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}

// Report is the externally persisted payload for one run.
type Report struct {
	Timestamp  time.Time  `json:"timestamp"`
	Config     Config     `json:"config"`
	Metrics    RunMetrics `json:"metrics"`
	Statistics Statistics `json:"statistics"`
	Assessment Assessment `json:"assessment"`
}

// BatchReport is the externally persisted payload for one batch run.
type BatchReport struct {
	Timestamp time.Time        `json:"timestamp"`
	Scenarios []Scenario       `json:"scenarios"`
	Results   []ScenarioResult `json:"results"`
}
