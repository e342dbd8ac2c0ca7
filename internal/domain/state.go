package domain

// State is the menu position of a user. It decides which handler gets a
// plain text message.
type State string

const (
	StateIdle          State = ""
	StateChoosingModel State = "choosing_model"
	StateChatting      State = "chatting"
	StateNamingChat    State = "naming_chat"
	StateChoosingChat  State = "choosing_chat"
	StateRenamingChat  State = "renaming_chat"
)

type StateStore interface {
	State(userID int64) State
	SetState(userID int64, state State)
}
