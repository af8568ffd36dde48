package telegram

// Update is one long-poll result from the Bot API.
type Update struct {
	UpdateID     int64         `json:"update_id"`
	Message      *Message      `json:"message,omitempty"`
	MyChatMember *MemberUpdate `json:"my_chat_member,omitempty"`
}

// Message mirrors the subset of the Bot API message object the bot
// consumes. Ids increase monotonically within a chat.
type Message struct {
	ID             int64       `json:"message_id"`
	From           *User       `json:"from,omitempty"`
	Chat           Chat        `json:"chat"`
	Date           int64       `json:"date"`
	Text           string      `json:"text,omitempty"`
	Caption        string      `json:"caption,omitempty"`
	Voice          *Voice      `json:"voice,omitempty"`
	Audio          *Audio      `json:"audio,omitempty"`
	Photo          []PhotoSize `json:"photo,omitempty"`
	ReplyToMessage *Message    `json:"reply_to_message,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username,omitempty"`
}

type Voice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
}

type Audio struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
}

// PhotoSize is one resolution variant of an attached photo; the API
// lists them smallest first.
type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// MemberUpdate signals the bot's own membership change in a chat.
type MemberUpdate struct {
	Chat          Chat `json:"chat"`
	NewChatMember struct {
		Status string `json:"status"`
	} `json:"new_chat_member"`
}

// File is the metadata returned by getFile.
type File struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

// AudioContent reports whether the message carries voice or audio and
// returns its file id.
func (m *Message) AudioContent() (string, bool) {
	if m.Audio != nil {
		return m.Audio.FileID, true
	}
	if m.Voice != nil {
		return m.Voice.FileID, true
	}
	return "", false
}
