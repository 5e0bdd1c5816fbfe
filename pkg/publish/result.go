package publish

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/holon-run/ota/pkg/api"
	"github.com/holon-run/ota/pkg/assets"
)

// GroupSummary describes one published update group.
type GroupSummary struct {
	ID             string            `json:"id"`
	RuntimeVersion string            `json:"runtimeVersion"`
	Platforms      []string          `json:"platforms"`
	UpdateIDs      map[string]string `json:"updateIds"`
}

// PublishResult is the outcome of a publish or republish.
type PublishResult struct {
	Branch         string               `json:"branch"`
	BranchID       string               `json:"branchId"`
	CreatedBranch  bool                 `json:"createdBranch"`
	Channel        string               `json:"channel,omitempty"`
	CreatedChannel bool                 `json:"createdChannel,omitempty"`
	Message        string               `json:"message"`
	Assets         assets.Result        `json:"assets"`
	Groups         []GroupSummary       `json:"groups"`
	Updates        []api.UpdateFragment `json:"updates"`
	PublishedAt    time.Time            `json:"publishedAt"`
}

// summarizeGroups folds platform updates into their groups, keeping the
// order in which groups first appear.
func summarizeGroups(updates []api.UpdateFragment) []GroupSummary {
	index := make(map[string]int)
	var groups []GroupSummary
	for _, u := range updates {
		i, ok := index[u.Group]
		if !ok {
			i = len(groups)
			index[u.Group] = i
			groups = append(groups, GroupSummary{
				ID:             u.Group,
				RuntimeVersion: u.RuntimeVersion,
				UpdateIDs:      make(map[string]string),
			})
		}
		groups[i].Platforms = append(groups[i].Platforms, u.Platform)
		groups[i].UpdateIDs[u.Platform] = u.ID
	}
	for i := range groups {
		sort.Strings(groups[i].Platforms)
	}
	return groups
}

var summaryTemplate = template.Must(template.New("summary").Funcs(sprig.TxtFuncMap()).Parse(
	`{{- if .CreatedBranch }}Created branch {{ .Branch | quote }}
{{ end -}}
{{- if .CreatedChannel }}Created channel {{ .Channel | quote }} pointing at branch {{ .Branch | quote }}
{{ end -}}
Published {{ len .Groups }} update group{{ if ne (len .Groups) 1 }}s{{ end }} to branch {{ .Branch | quote }}{{ with .Channel }} (channel {{ . | quote }}){{ end }}
Message:  {{ .Message | replace "\n" " " | trunc 120 }}
Assets:   {{ .Assets.Uploaded }} uploaded, {{ .Assets.AlreadyPresent }} already stored
{{- range .Groups }}

  Group            {{ .ID }}
  Runtime version  {{ .RuntimeVersion }}
  Platforms        {{ join ", " .Platforms }}
{{- end }}
`))

// RenderSummary writes the human readable summary of r.
func RenderSummary(w io.Writer, r *PublishResult) error {
	if err := summaryTemplate.Execute(w, r); err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
