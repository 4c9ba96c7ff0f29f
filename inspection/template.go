// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspection

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
)

// ErrTemplate is returned for malformed inspection templates.
var ErrTemplate = errs.Class("inspection template")

// Template is an immutable inspection questionnaire definition.
type Template struct {
	ID        uuid.UUID
	Name      string
	Questions json.RawMessage
	CreatedAt time.Time
}

// TemplateField is a single question inside a section.
type TemplateField struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Type          string   `json:"type"`
	Options       []string `json:"options,omitempty"`
	TextRequired  bool     `json:"text_required"`
	ImageRequired bool     `json:"image_required"`
}

// TemplateSection is an ordered group of fields with a machine key.
type TemplateSection struct {
	Key    string          `json:"section"`
	Title  string          `json:"title"`
	Order  int             `json:"-"`
	Fields []TemplateField `json:"fields"`
}

// Catalogue is the parsed, ordered view of a template's questions. It is
// pure: once built it performs no I/O.
type Catalogue struct {
	sections []TemplateSection
	index    map[string]int
}

// ParseCatalogue parses the template questions definition into a catalogue.
func ParseCatalogue(questions json.RawMessage) (*Catalogue, error) {
	var sections []TemplateSection
	if err := json.Unmarshal(questions, &sections); err != nil {
		return nil, ErrTemplate.Wrap(err)
	}

	catalogue := &Catalogue{index: make(map[string]int, len(sections))}
	for i := range sections {
		section := sections[i]
		if section.Key == "" {
			return nil, ErrTemplate.New("section %d has no key", i)
		}
		if _, ok := catalogue.index[section.Key]; ok {
			return nil, ErrTemplate.New("duplicate section %q", section.Key)
		}
		section.Order = i
		catalogue.index[section.Key] = i
		catalogue.sections = append(catalogue.sections, section)
	}

	if len(catalogue.sections) == 0 {
		return nil, ErrTemplate.New("template has no sections")
	}
	return catalogue, nil
}

// Catalogue parses the template's questions.
func (template *Template) Catalogue() (*Catalogue, error) {
	return ParseCatalogue(template.Questions)
}

// Sections returns all sections in template order.
func (catalogue *Catalogue) Sections() []TemplateSection {
	return catalogue.sections
}

// SectionKeys returns the machine keys in template order.
func (catalogue *Catalogue) SectionKeys() []string {
	keys := make([]string, len(catalogue.sections))
	for i, section := range catalogue.sections {
		keys[i] = section.Key
	}
	return keys
}

// Section returns the section with the given key.
func (catalogue *Catalogue) Section(key string) (TemplateSection, bool) {
	i, ok := catalogue.index[key]
	if !ok {
		return TemplateSection{}, false
	}
	return catalogue.sections[i], true
}

// IndexOf returns the 0-based template position of the section.
func (catalogue *Catalogue) IndexOf(key string) (int, bool) {
	i, ok := catalogue.index[key]
	return i, ok
}

// Next returns the key of the section following the given one, when any.
func (catalogue *Catalogue) Next(key string) (string, bool) {
	i, ok := catalogue.index[key]
	if !ok || i+1 >= len(catalogue.sections) {
		return "", false
	}
	return catalogue.sections[i+1].Key, true
}

// IsLast reports whether the section is the last one in template order.
func (catalogue *Catalogue) IsLast(key string) bool {
	i, ok := catalogue.index[key]
	return ok && i == len(catalogue.sections)-1
}

// FieldOrder returns the declared field ids of a section in order.
func (catalogue *Catalogue) FieldOrder(key string) []string {
	section, ok := catalogue.Section(key)
	if !ok {
		return nil
	}
	ids := make([]string, len(section.Fields))
	for i, field := range section.Fields {
		ids[i] = field.ID
	}
	return ids
}

// Len returns the number of sections.
func (catalogue *Catalogue) Len() int {
	return len(catalogue.sections)
}

// defaultSections is the built-in weighing scale questionnaire used when an
// inspection references no template.
var defaultSections = []TemplateSection{
	{Key: "exterior", Title: "Гадна үзлэг", Fields: []TemplateField{
		{ID: "platform_plate", Question: "Платформын тавцан", Type: "status"},
		{ID: "frame", Question: "Хүрээ", Type: "status"},
		{ID: "approach", Question: "Орох гарах зам", Type: "status"},
	}},
	{Key: "indicator", Title: "Индикатор", Fields: []TemplateField{
		{ID: "display", Question: "Дэлгэц", Type: "status"},
		{ID: "keyboard", Question: "Товчлуур", Type: "status"},
		{ID: "calibration", Question: "Тохиргоо", Type: "status"},
	}},
	{Key: "jbox", Title: "Холболтын хайрцаг", Fields: []TemplateField{
		{ID: "sealing", Question: "Битүүмжлэл", Type: "status"},
		{ID: "wiring", Question: "Кабель холболт", Type: "status"},
	}},
	{Key: "sensor", Title: "Мэдрэгч", Fields: []TemplateField{
		{ID: "loadcell", Question: "Ачааллын мэдрэгч", Type: "status"},
		{ID: "ball", Question: "Бөмбөлөг тулгуур", Type: "status"},
		{ID: "cable", Question: "Мэдрэгчийн кабель", Type: "status"},
	}},
	{Key: "foundation", Title: "Суурь", Fields: []TemplateField{
		{ID: "concrete", Question: "Бетон суурь", Type: "status"},
		{ID: "drainage", Question: "Ус зайлуулах", Type: "status"},
	}},
	{Key: "cleanliness", Title: "Цэвэрлэгээ", Fields: []TemplateField{
		{ID: "platform", Question: "Тавцангийн цэвэрлэгээ", Type: "status"},
		{ID: "pit", Question: "Нүхний цэвэрлэгээ", Type: "status"},
	}},
}

// DefaultCatalogue returns the catalogue of the built-in questionnaire.
func DefaultCatalogue() *Catalogue {
	catalogue := &Catalogue{index: make(map[string]int, len(defaultSections))}
	for i, section := range defaultSections {
		section.Order = i
		catalogue.index[section.Key] = i
		catalogue.sections = append(catalogue.sections, section)
	}
	return catalogue
}
