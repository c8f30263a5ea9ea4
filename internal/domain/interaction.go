package domain

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// InteractionType is the platform's inbound interaction type code.
type InteractionType int

const (
	InteractionTypePing               InteractionType = 1
	InteractionTypeApplicationCommand InteractionType = 2
)

// ResponseType is the platform's interaction callback type code.
type ResponseType int

const (
	ResponseTypePong                             ResponseType = 1
	ResponseTypeChannelMessageWithSource         ResponseType = 4
	ResponseTypeDeferredChannelMessageWithSource ResponseType = 5
)

// Payload is the JSON body of an inbound interaction callback. Only the fields the
// gateway reads are modelled.
type Payload struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          InteractionType `json:"type"`
	Token         string          `json:"token"`
	Data          *CommandData    `json:"data,omitempty"`
	Member        *Member         `json:"member,omitempty"`
	User          *User           `json:"user,omitempty"`
}

// CommandData carries the invoked slash command.
type CommandData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Member is the guild member that invoked the interaction.
type Member struct {
	User *User `json:"user,omitempty"`
}

// User identifies a platform user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// Kind classifies an inbound interaction.
type Kind int

const (
	KindOther Kind = iota
	KindHandshake
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindHandshake:
		return "handshake"
	case KindCommand:
		return "command"
	default:
		return "other"
	}
}

// Command is the closed set of slash commands the gateway serves.
type Command int

const (
	CommandUnknown Command = iota
	CommandPing
	CommandCheck
)

// ParseCommand maps a command name to its Command. Unrecognized names map to CommandUnknown.
func ParseCommand(name string) Command {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ping":
		return CommandPing
	case "check":
		return CommandCheck
	default:
		return CommandUnknown
	}
}

func (c Command) String() string {
	switch c {
	case CommandPing:
		return "ping"
	case CommandCheck:
		return "check"
	default:
		return "unknown"
	}
}

// Interaction is the classified form of a verified inbound callback.
type Interaction struct {
	ID          string
	Kind        Kind
	Command     Command
	CommandName string // set iff Kind == KindCommand
	Token       string // single-use follow-up credential
	InvokerID   string
}

// Classify turns the wire payload into an Interaction.
func (p *Payload) Classify() Interaction {
	in := Interaction{
		ID:        p.ID,
		Token:     p.Token,
		InvokerID: p.invokerID(),
	}

	switch p.Type {
	case InteractionTypePing:
		in.Kind = KindHandshake
	case InteractionTypeApplicationCommand:
		in.Kind = KindCommand
		if p.Data != nil {
			in.CommandName = p.Data.Name
		}
		in.Command = ParseCommand(in.CommandName)
	default:
		in.Kind = KindOther
	}

	return in
}

// Guild invocations carry the user under member, direct messages carry it at the top level.
func (p *Payload) invokerID() string {
	if p.Member != nil && p.Member.User != nil && p.Member.User.ID != "" {
		return p.Member.User.ID
	}
	if p.User != nil {
		return p.User.ID
	}
	return ""
}

// DecodeInteraction parses a raw, already verified request body.
func DecodeInteraction(body []byte) (Interaction, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Interaction{}, ErrInvalidRequest("malformed interaction body").
			WithCode(ErrorCodeMalformedBody).
			WithCause(err)
	}
	return p.Classify(), nil
}

// Response is the immediate synchronous answer to an interaction callback.
type Response struct {
	Type ResponseType `json:"type"`
	Data *Message     `json:"data,omitempty"`
}

// MessageFlags are bit flags on outgoing messages.
type MessageFlags int

// MessageFlagEphemeral shows the message only to the invoking user.
const MessageFlagEphemeral MessageFlags = 1 << 6

// Message is the body of an immediate channel message or a follow-up webhook.
type Message struct {
	Content string       `json:"content,omitempty"`
	Embeds  []Embed      `json:"embeds,omitempty"`
	Flags   MessageFlags `json:"flags,omitempty"`
}

// Embed is a rich message block.
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Fields      []EmbedField `json:"fields"`
	Color       int          `json:"color"`
}

// EmbedField is a single name/value row in an Embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Mention formats a user mention, or returns "" when the user is unknown.
func Mention(userID string) string {
	if userID == "" {
		return ""
	}
	return fmt.Sprintf("<@%s>", userID)
}
