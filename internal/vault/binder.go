package vault

// Binding records that a tag was bound during a redaction pass. It carries no
// value so it can be logged and audited.
type Binding struct {
	Tag   string `json:"tag"`
	Label Label  `json:"label"`
	Stage string `json:"stage,omitempty"`
}

// Binder assigns tags for one redaction pass over one message and writes the
// bindings into the session.
//
// The first distinct value of a label in the pass takes the base tag (and so
// replaces whatever an earlier message bound there). Further distinct values
// of the same label get indexed tags, [REDACTED_NIK_2] and so on, so two
// identity numbers in one message stay distinguishable. A value seen again in
// the same pass reuses its tag.
type Binder struct {
	session *Session
	stage   string
	tags    map[Label]map[string]string
	bound   []Binding
}

// NewBinder starts a redaction pass against s.
func NewBinder(s *Session) *Binder {
	return &Binder{
		session: s,
		tags:    make(map[Label]map[string]string),
	}
}

// SetStage names the pipeline stage recorded on subsequent bindings.
func (b *Binder) SetStage(stage string) {
	b.stage = stage
}

// Bind returns the tag for value under label, storing the binding in the
// session.
func (b *Binder) Bind(l Label, value string) string {
	byValue, ok := b.tags[l]
	if !ok {
		byValue = make(map[string]string)
		b.tags[l] = byValue
	}
	if tag, ok := byValue[value]; ok {
		return tag
	}

	tag := IndexedTag(l, len(byValue)+1)
	byValue[value] = tag
	b.session.Bind(tag, value)
	b.bound = append(b.bound, Binding{Tag: tag, Label: l, Stage: b.stage})
	return tag
}

// Bound returns the bindings made in this pass, in order.
func (b *Binder) Bound() []Binding {
	out := make([]Binding, len(b.bound))
	copy(out, b.bound)
	return out
}
