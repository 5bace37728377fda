package app

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Jeevanlr/mental-prediction/internal/ui"
)

// field is a single-line text input.
type field struct {
	key    string
	label  string
	value  []rune
	masked bool
}

// form is an ordered set of fields with one focused.
type form struct {
	fields []field
	focus  int
}

func newForm(fields ...field) form {
	return form{fields: fields}
}

// handleKey edits the focused field or moves focus. It reports whether the
// key was consumed.
func (f *form) handleKey(msg tea.KeyMsg) bool {
	if len(f.fields) == 0 {
		return false
	}
	switch msg.String() {
	case KeyTab, KeyDown:
		f.next()
		return true
	case KeyShiftTab, KeyUp:
		f.focus = (f.focus - 1 + len(f.fields)) % len(f.fields)
		return true
	case KeyBackspace:
		v := f.fields[f.focus].value
		if len(v) > 0 {
			f.fields[f.focus].value = v[:len(v)-1]
		}
		return true
	}
	switch msg.Type {
	case tea.KeyRunes:
		f.fields[f.focus].value = append(f.fields[f.focus].value, msg.Runes...)
		return true
	case tea.KeySpace:
		f.fields[f.focus].value = append(f.fields[f.focus].value, ' ')
		return true
	}
	return false
}

func (f *form) next() {
	f.focus = (f.focus + 1) % len(f.fields)
}

func (f form) onLast() bool { return f.focus == len(f.fields)-1 }

func (f form) value(key string) string {
	for _, fl := range f.fields {
		if fl.key == key {
			return string(fl.value)
		}
	}
	return ""
}

func (f *form) set(key, v string) {
	for i := range f.fields {
		if f.fields[i].key == key {
			f.fields[i].value = []rune(v)
		}
	}
}

func (f *form) reset() {
	for i := range f.fields {
		f.fields[i].value = nil
	}
	f.focus = 0
}

func (f form) render(width int) []string {
	labelW := 0
	for _, fl := range f.fields {
		labelW = max(labelW, len(fl.label))
	}
	lines := make([]string, 0, len(f.fields))
	for i, fl := range f.fields {
		v := string(fl.value)
		if fl.masked {
			v = strings.Repeat("•", len(fl.value))
		}
		label := padRight(fl.label, labelW)
		v = tail(v, width-labelW-5)
		if i == f.focus {
			lines = append(lines, ui.SelectedStyle.Render("› "+label)+"  "+v+"▌")
		} else {
			lines = append(lines, "  "+ui.DimStyle.Render(label)+"  "+v)
		}
	}
	return lines
}

// tail keeps the last n runes of s so the cursor end stays visible.
func tail(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}

func loginForm() form {
	return newForm(
		field{key: "email", label: "Email"},
		field{key: "password", label: "Password", masked: true},
	)
}

func registerForm() form {
	return newForm(
		field{key: "name", label: "Name"},
		field{key: "dob", label: "Date of birth (YYYY-MM-DD)"},
		field{key: "email", label: "Email"},
		field{key: "password", label: "Password", masked: true},
		field{key: "phone", label: "Phone"},
		field{key: "doctor_name", label: "Doctor name"},
		field{key: "doctor_email", label: "Doctor email"},
		field{key: "doctor_phone", label: "Doctor phone"},
		field{key: "relative1_name", label: "Relative 1 name"},
		field{key: "relative1_email", label: "Relative 1 email"},
		field{key: "relative1_phone", label: "Relative 1 phone"},
		field{key: "relative2_name", label: "Relative 2 name"},
		field{key: "relative2_email", label: "Relative 2 email"},
		field{key: "relative2_phone", label: "Relative 2 phone"},
	)
}

func singleLineForm(key, label string) form {
	return newForm(field{key: key, label: label})
}
