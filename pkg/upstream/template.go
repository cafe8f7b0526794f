package upstream

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/bollardhq/bollard/pkg/types"
)

// siteTemplate is the full nginx site file for one application: the
// upstream block carries one server line per healthy replica, the rest is
// fixed boilerplate keyed on the backend group name, public domain and
// application name.
const siteTemplate = `# Managed by bollard for {{ .AppName }}. Regenerated on every deploy; do not edit.
upstream {{ .AppName }}_backend {
{{- range .Backends }}
    server {{ .Host }}:{{ .Port }} max_fails=3 fail_timeout=30s;
{{- end }}
}

server {
    listen 80;
    server_name {{ .Domain }};

    location /.well-known/acme-challenge/ {
        root /var/www/letsencrypt;
    }

    location / {
        proxy_pass http://{{ .AppName }}_backend;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
        proxy_connect_timeout 5s;
        proxy_read_timeout 60s;
    }
}
`

var siteTmpl = template.Must(template.New("site").Parse(siteTemplate))

// Render produces the site configuration for an upstream set. Rendering
// is deterministic: an identical set yields byte-identical output.
func Render(set *types.UpstreamSet) (string, error) {
	if set.AppName == "" {
		return "", fmt.Errorf("upstream set has no app name")
	}
	if len(set.Backends) == 0 {
		return "", fmt.Errorf("refusing to render an empty backend list for %s", set.AppName)
	}

	var buf strings.Builder
	if err := siteTmpl.Execute(&buf, set); err != nil {
		return "", fmt.Errorf("failed to render upstream config: %w", err)
	}
	return buf.String(), nil
}
