package cli

import "text/template"

const usageTemplate = `
Tallysync Client

Usage:
  tallysync [OPTIONS] COMMAND [ARGS]

Options:
  --version                Show version information
  --server URL             Server URL (default: http://localhost:8080)
  --db PATH                Path to local database (default: tallysync-client.db)
  --user NAME              Acting user for increments (default: saved user)
  --offline                Do not contact the server, queue changes locally
  --flush-delay DURATION   Quiet period before taps are sent (default: 2s)
  --max-batch N            Max taps per counter in one request (default: 10)
  --log-level LEVEL        Log level: debug, info, warn, error

Environment variables TALLYSYNC_SERVER, TALLYSYNC_CLIENT_DB, TALLYSYNC_USER,
TALLYSYNC_OFFLINE and TALLYSYNC_LOG_LEVEL are used when the flag is not set.

Commands:
  list                     Show all counters
  show <counter>           Show counter details, users and history
  create <name> [goal]     Create a counter with an optional daily goal
  rename <counter> <name>  Rename a counter
  goal <counter> <n|none>  Set or clear the daily goal
  inc <counter> [times]    Add taps (+1 each) for the acting user
  dec <counter>            Remove one from the counter
  reset <counter>          Reset value and today's progress
  delete <counter> [-y]    Delete a counter
  sync                     Send queued changes and fetch server state
  status                   Show local state and queued changes
  watch                    Stay connected and print live updates
  user [name]              Show or save the acting user

A counter is referenced by its ID, a unique ID prefix or its exact name.

Examples:
  tallysync user Alice
  tallysync create Pushups 50
  tallysync inc Pushups 10
  tallysync --offline dec Pushups
  tallysync --server https://example.com sync
`

const counterListTemplate = `
=== Counters ===

{{- if eq (len .) 0 }}
No counters found.

Use 'tallysync create <name>' to add your first counter.

{{ else }}
Found {{len .}} counter(s):

{{- range . }}
- {{ .Name }}: {{ .Value }}
   ID:    {{ .ID }}
   Today: {{ .Today }}{{ if .HasGoal }} / {{ .Goal }}{{ if .GoalMet }} (goal reached){{ end }}{{ end }}
   {{- if .PendingTaps }}
   Unsent taps: {{ .PendingTaps }}
   {{- end }}

{{- end }}
{{ end }}`

const counterDetailsTemplate = `
=== Counter Details ===

Name:    {{.Name}}
ID:      {{.ID}}
Value:   {{.Value}}
Today:   {{.Today}}{{ if .HasGoal }} / {{ .Goal }}{{ end }}
Created: {{.CreatedAt}}
Updated: {{.LastUpdated}}
{{- if .PendingTaps }}
Unsent taps: {{.PendingTaps}}
{{- end }}
{{- if .Users }}

Contributions:
{{- range .Users }}
  {{ printf "%-20s" .Name }} {{ .Count }}
{{- end }}
{{- end }}
{{- if .Days }}

History:
{{- range .Days }}
  {{ .Key }} {{ printf "%-9s" .Weekday }} {{ .Total }}
{{- end }}
{{- end }}
`

const statusTemplate = `
=== Status ===

Server:           {{ if .Server }}{{ .Server }}{{ else }}(not set){{ end }}
Acting user:      {{ if .User }}{{ .User }}{{ else }}(not set){{ end }}
Counters:         {{ .Counters }}
Queued changes:   {{ .PendingChanges }}
{{- range .Queued }}
  {{ .Type }} {{ .ID }}{{ if .Delta }} {{ printf "%+d" .Delta }}{{ end }}
{{- end }}
Last local write: {{ .LastSync }}
Last server sync: {{ .LastServerSync }}
`

const syncResultTemplate = `
=== Synchronization ===

Sent to server:     {{ .Applied }} change(s)
{{- if .Discarded }}
Rejected by server: {{ .Discarded }} change(s)
{{- end }}
{{- if .Deferred }}
Still queued:       {{ .Deferred }} change(s)
{{- end }}
{{- if .Fetched }}
Counters:           {{ .Counters }}
{{- end }}
Status:             {{ .Status }}
`

var (
	usageTmpl          = template.Must(template.New("usage").Parse(usageTemplate))
	counterListTmpl    = template.Must(template.New("list").Parse(counterListTemplate))
	counterDetailsTmpl = template.Must(template.New("details").Parse(counterDetailsTemplate))
	statusTmpl         = template.Must(template.New("status").Parse(statusTemplate))
	syncResultTmpl     = template.Must(template.New("sync").Parse(syncResultTemplate))
)
