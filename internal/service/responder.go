package service

import (
	"context"
	"fmt"
	"strings"

	"dryengineer/internal/domain"
	"dryengineer/internal/repository"
)

// NoAnswerNotice is broadcast when no rule matches a chat message.
const NoAnswerNotice = "Nobody can answer that right now. Your message has been saved and an operator will reply later."

// Rule pairs a keyword set with a canned reply.
type Rule struct {
	Keywords []string
	Reply    string
}

// DefaultRules are evaluated in order; the first matching rule wins.
var DefaultRules = []Rule{
	{
		Keywords: []string{"hi", "hello", "привіт", "вітаю"},
		Reply:    "Hello! How can I help you with the dryer setup?",
	},
	{
		Keywords: []string{"recipe", "рецепт"},
		Reply:    "Recipes are listed on the Recipes page. Pick one to edit its drying parameters or create a new one.",
	},
	{
		Keywords: []string{"temperature", "температур"},
		Reply:    "Grain and agent temperatures are set per recipe. Keep the working value below the maximum and the critical limit.",
	},
	{
		Keywords: []string{"fan", "вентилят"},
		Reply:    "Fan rates are set per recipe with maxfanasprate (aspiration) and maxfanrecrate (recirculation).",
	},
	{
		Keywords: []string{"unload", "вивантаж"},
		Reply:    "Unloading is controlled by timeunload and timeunloaddelay of the active recipe.",
	},
	{
		Keywords: []string{"password", "пароль"},
		Reply:    "Ask an administrator to reset your password from the Users page.",
	},
	{
		Keywords: []string{"bye", "до побачення"},
		Reply:    "Goodbye! Have a good drying season.",
	},
}

// Match returns the reply of the first rule with a keyword contained in
// text, compared case-insensitively.
func Match(rules []Rule, text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Reply, true
			}
		}
	}
	return "", false
}

// Reply is the outcome of an auto-responder pass.
type Reply struct {
	Text    string
	Matched bool
}

// Responder answers chat messages from a rule list and keeps the ones it
// cannot answer.
type Responder struct {
	rules    []Rule
	messages repository.MessageRepository
}

func NewResponder(messages repository.MessageRepository, rules []Rule) *Responder {
	if rules == nil {
		rules = DefaultRules
	}
	return &Responder{rules: rules, messages: messages}
}

func (r *Responder) Respond(ctx context.Context, text, user string) (Reply, error) {
	if reply, ok := Match(r.rules, text); ok {
		return Reply{Text: reply, Matched: true}, nil
	}
	if _, err := r.messages.Create(ctx, &domain.Message{Text: text, User: user}); err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return Reply{Text: NoAnswerNotice}, nil
}
