package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/playwright-community/playwright-go"

	"github.com/polzovatel/easy-apply-agent/internal/form"
)

// formHandle adapts a playwright locator to form.Handle.
type formHandle struct {
	root playwright.Locator
}

func (h *formHandle) Controls() ([]form.Control, error) {
	locs, err := h.root.Locator("input, select, textarea").All()
	if err != nil {
		return nil, wrap(err)
	}
	controls := make([]form.Control, 0, len(locs))
	for _, loc := range locs {
		meta, err := elementMeta(loc)
		if err != nil {
			// Best effort: skip elements that vanished mid-enumeration.
			continue
		}
		controls = append(controls, &control{loc: loc, meta: meta})
	}
	return controls, nil
}

type controlMeta struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs"`
	Label    string            `json:"label"`
	Required bool              `json:"required"`
}

// elementMeta mines tag, attributes, the associated <label> text and the
// required flag in one page-side evaluation.
func elementMeta(loc playwright.Locator) (controlMeta, error) {
	script := `el => {
		const attrs = {};
		for (const name of ["aria-label", "name", "id", "placeholder", "type"]) {
			const v = el.getAttribute(name);
			if (v !== null && v.trim() !== "") attrs[name] = v.trim();
		}
		let label = "";
		const id = el.getAttribute("id");
		if (id) {
			const root = el.getRootNode() || document;
			const lbl = root.querySelector('label[for="' + CSS.escape(id) + '"]');
			if (lbl) label = (lbl.innerText || lbl.textContent || "").trim();
		}
		if (!label) {
			const wrap = el.closest("label");
			if (wrap) label = (wrap.innerText || wrap.textContent || "").trim();
		}
		return {
			tag: el.tagName.toLowerCase(),
			attrs: attrs,
			label: label,
			required: el.hasAttribute("required") || el.getAttribute("aria-required") === "true",
		};
	}`
	val, err := loc.Evaluate(script, nil)
	if err != nil {
		return controlMeta{}, wrap(err)
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return controlMeta{}, fmt.Errorf("marshal element meta: %w", err)
	}
	var meta controlMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return controlMeta{}, fmt.Errorf("decode element meta: %w", err)
	}
	return meta, nil
}

// control adapts one playwright locator to form.Control. Metadata is
// captured once at enumeration time; interactions go through the live
// locator.
type control struct {
	loc  playwright.Locator
	meta controlMeta
}

func (c *control) Tag() string { return c.meta.Tag }

func (c *control) Attr(name string) string { return c.meta.Attrs[name] }

func (c *control) LabelText() string { return c.meta.Label }

func (c *control) Required() bool { return c.meta.Required }

func (c *control) Fill(value string) error {
	return wrap(c.loc.Fill(value))
}

func (c *control) SelectByText(value string) error {
	selected, err := c.loc.SelectOption(playwright.SelectOptionValues{
		Labels: playwright.StringSlice(value),
	})
	if err != nil {
		return wrap(err)
	}
	if len(selected) == 0 {
		return fmt.Errorf("no option with visible text %q", value)
	}
	return nil
}

func (c *control) SelectByValue(value string) error {
	selected, err := c.loc.SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice(value),
	})
	if err != nil {
		return wrap(err)
	}
	if len(selected) == 0 {
		return fmt.Errorf("no option with value %q", value)
	}
	return nil
}

func (c *control) SetChecked(checked bool) error {
	return wrap(c.loc.SetChecked(checked))
}

func (c *control) Upload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read upload file: %w", err)
	}
	return wrap(c.loc.SetInputFiles([]playwright.InputFile{{
		Name:   filepath.Base(path),
		Buffer: data,
	}}))
}
