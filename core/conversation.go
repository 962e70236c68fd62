package core

import "strings"

// UserAuthor is the author of the first turn of every conversation.
const UserAuthor = "user"

// Turn is one contribution to a multi-hop conversation.
type Turn struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// Conversation accumulates the original task and every worker result across
// hops. It is passed to the orchestrator when deciding whether to finish or
// delegate again.
type Conversation struct {
	TaskID string `json:"task_id"`
	Turns  []Turn `json:"turns"`
}

// NewConversation starts a conversation with the user's task.
func NewConversation(task Task) *Conversation {
	return &Conversation{TaskID: task.ID, Turns: []Turn{{Author: UserAuthor, Content: task.Payload}}}
}

// Append records a turn.
func (c *Conversation) Append(author, content string) {
	c.Turns = append(c.Turns, Turn{Author: author, Content: content})
}

// Task returns the original task text.
func (c *Conversation) Task() string {
	if len(c.Turns) == 0 {
		return ""
	}
	return c.Turns[0].Content
}

// Last returns the most recent turn.
func (c *Conversation) Last() Turn {
	if len(c.Turns) == 0 {
		return Turn{}
	}
	return c.Turns[len(c.Turns)-1]
}

// String renders the conversation as "author: content" lines.
func (c *Conversation) String() string {
	var b strings.Builder
	for i, t := range c.Turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Author)
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}
