// Package brand reads and writes the brand profile kept in the knowledge
// base.
package brand

import (
	"bufio"
	"encoding/json"
	"regexp"
	"strings"
)

// Field is a labelled value the profile has no dedicated slot for.
type Field struct {
	Label string   `json:"label"`
	Value string   `json:"value,omitempty"`
	Items []string `json:"items,omitempty"`
}

type Profile struct {
	BrandName      string   `json:"brand_name,omitempty"`
	Tagline        string   `json:"tagline,omitempty"`
	Industry       string   `json:"industry,omitempty"`
	Website        string   `json:"website,omitempty"`
	Mission        string   `json:"mission,omitempty"`
	TargetAudience string   `json:"target_audience,omitempty"`
	Voice          string   `json:"voice,omitempty"`
	Values         []string `json:"values,omitempty"`
	Products       []string `json:"products,omitempty"`
	Competitors    []string `json:"competitors,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	Other          []Field  `json:"other,omitempty"`
}

type slot struct {
	label string
	text  func(*Profile) *string
	list  func(*Profile) *[]string
}

var slots = []slot{
	{label: "Brand Name", text: func(p *Profile) *string { return &p.BrandName }},
	{label: "Tagline", text: func(p *Profile) *string { return &p.Tagline }},
	{label: "Industry", text: func(p *Profile) *string { return &p.Industry }},
	{label: "Website", text: func(p *Profile) *string { return &p.Website }},
	{label: "Mission", text: func(p *Profile) *string { return &p.Mission }},
	{label: "Target Audience", text: func(p *Profile) *string { return &p.TargetAudience }},
	{label: "Brand Voice", text: func(p *Profile) *string { return &p.Voice }},
	{label: "Core Values", list: func(p *Profile) *[]string { return &p.Values }},
	{label: "Products", list: func(p *Profile) *[]string { return &p.Products }},
	{label: "Competitors", list: func(p *Profile) *[]string { return &p.Competitors }},
	{label: "Keywords", list: func(p *Profile) *[]string { return &p.Keywords }},
}

var aliases = map[string]string{
	"brand":                 "brand name",
	"company":               "brand name",
	"company name":          "brand name",
	"name":                  "brand name",
	"slogan":                "tagline",
	"url":                   "website",
	"mission statement":     "mission",
	"audience":              "target audience",
	"target market":         "target audience",
	"voice":                 "brand voice",
	"tone":                  "brand voice",
	"tone of voice":         "brand voice",
	"values":                "core values",
	"products and services": "products",
	"services":              "products",
	"offerings":             "products",
}

var (
	labelLine  = regexp.MustCompile(`^\s*(?:#+\s*)?(?:\*\*)?([A-Za-z][A-Za-z0-9 &/'()-]{0,60}?)(?:\*\*)?\s*:\s*(.*?)\s*$`)
	bulletLine = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+?)\s*$`)
)

func normalizeLabel(label string) string {
	l := strings.ToLower(strings.Join(strings.Fields(label), " "))
	if canonical, ok := aliases[l]; ok {
		return canonical
	}
	return l
}

func findSlot(label string) (slot, bool) {
	norm := normalizeLabel(label)
	for _, s := range slots {
		if strings.ToLower(s.label) == norm {
			return s, true
		}
	}
	return slot{}, false
}

// ParseLegacy reads plain-text profiles written as "Label: value" lines,
// optionally followed by "- item" bullets. Unknown labels land in Other.
func ParseLegacy(text string) Profile {
	var p Profile
	var current *Field
	flush := func() {
		if current == nil {
			return
		}
		p.assign(*current)
		current = nil
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := bulletLine.FindStringSubmatch(line); m != nil && current != nil {
			current.Items = append(current.Items, m[1])
			continue
		}
		if m := labelLine.FindStringSubmatch(line); m != nil {
			flush()
			current = &Field{Label: strings.TrimSpace(m[1]), Value: m[2]}
			continue
		}
		if current != nil {
			if current.Value == "" {
				current.Value = strings.TrimSpace(line)
			} else {
				current.Value += "\n" + strings.TrimSpace(line)
			}
		}
	}
	flush()
	return p
}

func (p *Profile) assign(f Field) {
	s, ok := findSlot(f.Label)
	if !ok {
		p.Other = append(p.Other, f)
		return
	}
	if s.list != nil {
		items := append([]string(nil), f.Items...)
		if f.Value != "" {
			for _, part := range strings.Split(f.Value, ",") {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, part)
				}
			}
		}
		*s.list(p) = append(*s.list(p), items...)
		return
	}
	value := f.Value
	if value == "" && len(f.Items) > 0 {
		value = strings.Join(f.Items, ", ")
	}
	*s.text(p) = value
}

// Render writes the profile back in the plain-text layout ParseLegacy reads.
func (p Profile) Render() string {
	var b strings.Builder
	for _, s := range slots {
		if s.text != nil {
			if v := *s.text(&p); v != "" {
				b.WriteString(s.label + ": " + v + "\n")
			}
			continue
		}
		if items := *s.list(&p); len(items) > 0 {
			b.WriteString(s.label + ":\n")
			for _, it := range items {
				b.WriteString("- " + it + "\n")
			}
		}
	}
	for _, f := range p.Other {
		b.WriteString(f.Label + ": " + f.Value + "\n")
		for _, it := range f.Items {
			b.WriteString("- " + it + "\n")
		}
	}
	return b.String()
}

// Empty reports whether no field is set.
func (p Profile) Empty() bool {
	return strings.TrimSpace(p.Render()) == ""
}

// Parse reads a knowledge-base document: a JSON profile or legacy text.
func Parse(content string) Profile {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		var p Profile
		if err := json.Unmarshal([]byte(trimmed), &p); err == nil {
			return p
		}
	}
	return ParseLegacy(content)
}
