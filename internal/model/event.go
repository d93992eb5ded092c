package model

// DecodedEvent is a log matched against a known event schema.
type DecodedEvent struct {
	Name string `json:"name"`
	// Args holds every argument in declaration order, indexed and non-indexed merged.
	Args  []interface{}          `json:"args"`
	Named map[string]interface{} `json:"named"`
	Log   LogEntry               `json:"log"`
}

// Arg returns the positional argument at i.
func (e DecodedEvent) Arg(i int) (interface{}, bool) {
	if i < 0 || i >= len(e.Args) {
		return nil, false
	}
	return e.Args[i], true
}
