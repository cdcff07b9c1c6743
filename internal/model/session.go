package model

// ChatState is the step of a multi-message telegram dialog.
type ChatState int

const (
	DefaultState ChatState = iota
	ExpectingBuyQuantity
	ExpectingSellQuantity
)

type Session struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	State    ChatState `json:"state,omitempty"`
	Symbol   string    `json:"symbol,omitempty"`
}

func (s Session) Authenticated() bool {
	return s.UserID != 0
}
