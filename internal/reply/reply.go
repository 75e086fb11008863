// Package reply models outbound chat messages produced by the conversation
// core. The transport decides how each kind is rendered.
package reply

import "github.com/ilyosbek9531/expense-tracker-bot/internal/callback"

// Kind selects how a Message is delivered.
type Kind int

const (
	// KindText is a plain text message.
	KindText Kind = iota
	// KindChoices is a text message with an inline button list.
	KindChoices
	// KindMenu is a text message that installs a persistent reply keyboard.
	KindMenu
	// KindEditChoices replaces the buttons of the message a callback came from.
	KindEditChoices
	// KindAnimation is a GIF sent by URL.
	KindAnimation
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindChoices:
		return "choices"
	case KindMenu:
		return "menu"
	case KindEditChoices:
		return "edit_choices"
	case KindAnimation:
		return "animation"
	}
	return "unknown"
}

// Button is one inline choice.
type Button struct {
	Label string
	Data  callback.Data
}

// Message is one outbound reply.
type Message struct {
	Kind Kind
	Text string
	// Buttons holds inline rows for KindChoices and KindEditChoices.
	Buttons [][]Button
	// Menu holds reply keyboard rows for KindMenu.
	Menu [][]string
	// URL is the media location for KindAnimation.
	URL string
}

func Text(text string) Message {
	return Message{Kind: KindText, Text: text}
}

// Choices lays out one button per row.
func Choices(text string, buttons ...Button) Message {
	return Message{Kind: KindChoices, Text: text, Buttons: oneColumn(buttons)}
}

// ChoiceRows keeps the given row layout.
func ChoiceRows(text string, rows ...[]Button) Message {
	return Message{Kind: KindChoices, Text: text, Buttons: rows}
}

func EditChoices(buttons ...Button) Message {
	return Message{Kind: KindEditChoices, Buttons: oneColumn(buttons)}
}

// Menu lays labels out perRow per row.
func Menu(text string, perRow int, labels ...string) Message {
	if perRow <= 0 {
		perRow = 1
	}
	var rows [][]string
	for i := 0; i < len(labels); i += perRow {
		end := min(i+perRow, len(labels))
		rows = append(rows, labels[i:end])
	}
	return Message{Kind: KindMenu, Text: text, Menu: rows}
}

func Animation(url string) Message {
	return Message{Kind: KindAnimation, URL: url}
}

func oneColumn(buttons []Button) [][]Button {
	rows := make([][]Button, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []Button{b})
	}
	return rows
}
