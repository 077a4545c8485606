package loam

// MenuMetadata is the front matter of one menu document. The document body is
// the prompt unless the front matter sets one.
//
//	---
//	collect: { length: 6, terminator: "#" }
//	options:
//	  "#": { action: lookup_record, message: "Looking up your PNR..." }
//	---
//	Please enter your 6 digit PNR followed by the hash key.
type MenuMetadata struct {
	ID      string            `json:"id" mapstructure:"id"`
	Prompt  string            `json:"prompt" mapstructure:"prompt"`
	Collect map[string]any    `json:"collect" mapstructure:"collect"`
	Options map[string]any    `json:"options" mapstructure:"options"`
	Aliases map[string]string `json:"aliases" mapstructure:"aliases"`

	// Intents is only read from the reserved "intents" document.
	Intents []any `json:"intents" mapstructure:"intents"`
}
