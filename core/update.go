package core

// Partial update keys emitted by the reasoning loop.
const (
	UpdateThought     = "thought"
	UpdateToolName    = "tool_name"
	UpdateToolInput   = "tool_input"
	UpdateToolOutput  = "tool_output"
	UpdateFinalAnswer = "final_answer"
)

// PartialUpdate is an incremental piece of output produced while a run is
// in flight. Value is a delta, not the accumulated text.
type PartialUpdate struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ProgressNotification routes a partial update back to the caller that
// supplied ProgressToken. It is emitted and never retained.
type ProgressNotification struct {
	ProgressToken any    `json:"progressToken"`
	DeltaKey      string `json:"deltaKey"`
	DeltaValue    string `json:"deltaValue"`
}

// UpdateFunc receives partial updates in the order they are produced.
type UpdateFunc func(PartialUpdate)

// Emit calls f when it is non-nil.
func (f UpdateFunc) Emit(key, value string) {
	if f != nil {
		f(PartialUpdate{Key: key, Value: value})
	}
}
