// Package docs renders the command reference as markdown.
package docs

import (
	"cmp"
	"io"
	"slices"
	"strings"
	"text/template"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/core"
)

var commandsTmpl = template.Must(template.New("commands").Parse(`{{range .}}### {{.Title}}

{{range .Commands}}- **` + "`{{.Usage}}`" + `** - {{.Description}}{{if .Aliases}} (aliases: {{.Aliases}}){{end}}
{{end}}
{{end}}`))

type section struct {
	Title    string
	weight   int
	Commands []line
}

type line struct {
	Usage       string
	Description string
	Aliases     string
}

// Markdown writes one section per category, ordered by category weight,
// listing each command's usage with its default prefix.
func Markdown(w io.Writer, cfg *config.Config, entries []*core.Entry) error {
	byCategory := map[string]*section{}
	var sections []*section
	for _, e := range entries {
		d := e.Descriptor()
		s, ok := byCategory[d.Category]
		if !ok {
			title := config.CategoryTitles[d.Category]
			if title == "" {
				title = d.Category
			}
			s = &section{Title: title, weight: config.CategoryWeights[d.Category]}
			byCategory[d.Category] = s
			sections = append(sections, s)
		}
		usage := d.Usage
		if usage == "" {
			usage = d.Triggers[0]
		}
		var aliases []string
		for _, t := range d.Triggers[1:] {
			aliases = append(aliases, e.Prefix()+t)
		}
		s.Commands = append(s.Commands, line{
			Usage:       cfg.Prefix(d.Category) + usage,
			Description: d.Description,
			Aliases:     strings.Join(aliases, ", "),
		})
	}
	slices.SortStableFunc(sections, func(a, b *section) int {
		return cmp.Compare(a.weight, b.weight)
	})
	return commandsTmpl.Execute(w, sections)
}
