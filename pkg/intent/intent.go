// Package intent maps free-text utterances onto discrete action labels.
//
// Matching is a case-insensitive substring search over an ordered rule table.
// The first rule with any keyword present in the utterance wins, so the order
// of the table is part of the classifier's behavior.
package intent

import (
	"strings"
)

// Label is the classifier output.
type Label string

// Unknown is returned for blank utterances and utterances no rule matches.
const Unknown Label = "unknown"

// Default labels, in precedence order.
const (
	CancelTicket      Label = "cancel_ticket"
	CheckStatus       Label = "check_status"
	Refund            Label = "refund"
	BookTicket        Label = "book_ticket"
	Baggage           Label = "baggage"
	SpecialAssistance Label = "special_assistance"
	TalkAgent         Label = "talk_agent"
)

// Rule binds a label to the keywords that select it.
type Rule struct {
	Label    Label    `json:"label" yaml:"label" mapstructure:"label"`
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"keywords"`
}

// DefaultRules is the built-in table.
// special_assistance is declared before talk_agent: both claim "help",
// and "I need help" must resolve to special assistance.
func DefaultRules() []Rule {
	return []Rule{
		{Label: CancelTicket, Keywords: []string{"cancel", "cancellation"}},
		{Label: CheckStatus, Keywords: []string{"status", "pnr", "where is my", "delayed", "on time"}},
		{Label: Refund, Keywords: []string{"refund", "money back", "reimburse"}},
		{Label: BookTicket, Keywords: []string{"book", "reserve", "new ticket", "reservation for"}},
		{Label: Baggage, Keywords: []string{"baggage", "luggage", "bag"}},
		{Label: SpecialAssistance, Keywords: []string{"wheelchair", "assistance", "disabled", "help"}},
		{Label: TalkAgent, Keywords: []string{"agent", "human", "person", "representative", "help"}},
	}
}

// Classifier is safe for concurrent use; its table is fixed at construction.
type Classifier struct {
	rules []Rule
}

// New creates a classifier over rules. Keywords are lowered once here.
// A nil or empty table yields the default rules.
func New(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	c := &Classifier{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		kw := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				kw = append(kw, k)
			}
		}
		c.rules = append(c.rules, Rule{Label: r.Label, Keywords: kw})
	}
	return c
}

// Classify returns the label of the first matching rule, or Unknown.
func (c *Classifier) Classify(utterance string) Label {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return Unknown
	}
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(text, k) {
				return r.Label
			}
		}
	}
	return Unknown
}

// Rules returns a copy of the ordered table.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = Rule{Label: r.Label, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}
