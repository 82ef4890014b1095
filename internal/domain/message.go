package domain

// Message is a chat line nobody had a canned answer for.
type Message struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	User string `json:"user"`
}

// Asset is a binary blob keyed by its filename.
type Asset struct {
	Filename string
	Data     []byte
}
