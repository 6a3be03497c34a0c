// Package form detects the fields of an application form and fills them
// from an answers map using fuzzy label matching. It only ever sees the
// Control/Handle interfaces; the playwright-backed implementation lives
// in internal/session.
package form

// Type classifies an interactive form element.
type Type string

const (
	TypeText     Type = "text"
	TypeSelect   Type = "select"
	TypeCheckbox Type = "checkbox"
	TypeRadio    Type = "radio"
	TypeFile     Type = "file"
)

// Control is the minimal surface of one interactive element. Attr
// returns the attribute value or "" when absent; LabelText is the text
// of the associated <label>, if any.
type Control interface {
	Tag() string
	Attr(name string) string
	LabelText() string
	Required() bool
	Fill(value string) error
	SelectByText(value string) error
	SelectByValue(value string) error
	SetChecked(checked bool) error
	Upload(path string) error
}

// Handle enumerates the interactive controls of one form.
type Handle interface {
	Controls() ([]Control, error)
}

// Descriptor is one detected field with its ordered label candidates,
// most authoritative first. Descriptors are enumerated fresh per form
// and discarded after the fill pass.
type Descriptor struct {
	Control  Control
	Labels   []string
	Type     Type
	Required bool
}

// describe gathers every available label source for a control:
// aria-label, name, id, placeholder, associated label text, in that
// order.
func describe(c Control) Descriptor {
	var labels []string
	for _, attr := range []string{"aria-label", "name", "id", "placeholder"} {
		if v := c.Attr(attr); v != "" {
			labels = append(labels, v)
		}
	}
	if v := c.LabelText(); v != "" {
		labels = append(labels, v)
	}

	typ := TypeText
	switch c.Tag() {
	case "select":
		typ = TypeSelect
	case "input":
		switch c.Attr("type") {
		case "checkbox":
			typ = TypeCheckbox
		case "radio":
			typ = TypeRadio
		case "file":
			typ = TypeFile
		}
	}

	return Descriptor{Control: c, Labels: labels, Type: typ, Required: c.Required()}
}

// DetectFields enumerates the fields of h. Problematic controls are
// skipped, not fatal.
func DetectFields(h Handle) ([]Descriptor, error) {
	controls, err := h.Controls()
	if err != nil {
		return nil, err
	}
	fields := make([]Descriptor, 0, len(controls))
	for _, c := range controls {
		fields = append(fields, describe(c))
	}
	return fields, nil
}
