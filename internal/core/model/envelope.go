package model

import "time"

type Channel string

const (
	ChannelReminder Channel = "reminder"
	ChannelNote     Channel = "note"
	ChannelURLText  Channel = "url_text"
	ChannelChat     Channel = "chat"
)

// Channels lists every accepted channel in display order.
var Channels = []Channel{ChannelReminder, ChannelNote, ChannelURLText, ChannelChat}

func (c Channel) Valid() bool {
	switch c {
	case ChannelReminder, ChannelNote, ChannelURLText, ChannelChat:
		return true
	}
	return false
}

type Mode string

const (
	ModeCapture Mode = "capture"
	ModeQuery   Mode = "query"
)

// ModeFor derives the mode hint from the channel. Chat is reserved for queries.
func ModeFor(c Channel) Mode {
	if c == ChannelChat {
		return ModeQuery
	}
	return ModeCapture
}

// Input is one raw record read from a source.
type Input struct {
	Channel   Channel   `json:"channel"`
	Text      string    `json:"text"`
	SourceID  string    `json:"source_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope is the only input to inference. It is built once per
// interaction and passed by value.
type Envelope struct {
	UserID    string       `json:"user_id"`
	Timestamp time.Time    `json:"timestamp"`
	Timezone  string       `json:"timezone"`
	Channel   Channel      `json:"channel"`
	ModeHint  Mode         `json:"mode_hint"`
	UserText  string       `json:"user_text"`
	SourceID  string       `json:"source_id"`
	KGContext GraphContext `json:"kg_context"`
}
