// Package checklist projects the grocery graph into the checklist document.
//
// The document is always rendered from the full set of open items so that a
// full replace never drops earlier items and repeated updates converge.
package checklist

import (
	"html"
	"sort"
	"strings"

	"github.com/gtalwar12/second-brain-poc/internal/core/category"
	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/store"
)

type Projector struct {
	canon      store.Labeler
	categories *category.Assigner
}

func NewProjector(labeler store.Labeler, categories *category.Assigner) *Projector {
	if categories == nil {
		categories = category.NewAssigner(nil)
	}
	return &Projector{canon: labeler, categories: categories}
}

type entry struct {
	key      string
	label    string
	category string
}

// Project merges the proposed layout with the item nodes of the graph.
// Graph nodes decide labels, categories and purchased state; layout entries
// without a node are kept with their canonical display form.
func (p *Projector) Project(layout model.Layout, items []model.Node) model.Layout {
	byKey := make(map[string]model.Node, len(items))
	for _, n := range items {
		if n.Type == model.NodeTypeItem {
			byKey[n.CanonicalKey] = n
		}
	}

	seen := make(map[string]bool)
	var entries []entry
	add := func(key, label, cat string) {
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		entries = append(entries, entry{key: key, label: label, category: cat})
	}

	for _, sec := range layout.Sections {
		for _, it := range sec.Items {
			key := p.canon.Key(it.Text)
			if n, ok := byKey[key]; ok {
				if n.Purchased() {
					seen[key] = true
					continue
				}
				add(key, n.Label, p.categories.Assign(key, "", n.Category()))
				continue
			}
			add(key, p.canon.Display(it.Text), p.categories.Assign(key, sec.Name, ""))
		}
	}
	for _, n := range items {
		if n.Type != model.NodeTypeItem || n.Purchased() {
			continue
		}
		add(n.CanonicalKey, n.Label, p.categories.Assign(n.CanonicalKey, "", n.Category()))
	}

	sections := make(map[string][]entry)
	for _, e := range entries {
		sections[e.category] = append(sections[e.category], e)
	}

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := category.Rank(names[i]), category.Rank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	out := model.Layout{Sections: make([]model.Section, 0, len(names))}
	for _, name := range names {
		es := sections[name]
		sort.Slice(es, func(i, j int) bool {
			li, lj := strings.ToLower(es[i].label), strings.ToLower(es[j].label)
			if li != lj {
				return li < lj
			}
			return es[i].key < es[j].key
		})
		sec := model.Section{Name: name, Items: make([]model.LayoutItem, 0, len(es))}
		for _, e := range es {
			sec.Items = append(sec.Items, model.LayoutItem{Text: e.label})
		}
		out.Sections = append(out.Sections, sec)
	}
	return out
}

// Render produces the note body: a title heading, then one heading and
// to-do list per non-empty section. All text is escaped.
func Render(title string, layout model.Layout) string {
	parts := []string{
		"<div><h1>" + html.EscapeString(title) + "</h1>",
		"<br>",
	}
	for _, sec := range layout.Sections {
		if len(sec.Items) == 0 {
			continue
		}
		name := sec.Name
		if strings.TrimSpace(name) == "" {
			name = category.Uncategorized
		}
		parts = append(parts, "<h2>"+html.EscapeString(name)+"</h2>", "<ul>")
		for _, it := range sec.Items {
			parts = append(parts, "<li><div><en-todo/>"+html.EscapeString(it.Text)+"</div></li>")
		}
		parts = append(parts, "</ul>", "<br>")
	}
	parts = append(parts, "</div>")
	return strings.Join(parts, "\n")
}
