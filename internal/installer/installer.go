// Package installer renders the shell scripts that install or remove a
// containerized wrapper for the serve command. The scripts are printed to
// stdout and meant to be piped into a shell, so running the container image
// with "install | bash" is the whole installation.
package installer

import (
	"fmt"
	"io"
	"text/template"
)

// Params parameterizes the generated wrapper script.
type Params struct {
	App    string // wrapper name under ~/bin
	Image  string // container image the wrapper runs
	UID    int    // uid the container runs as
	Socket string // host:port the wrapper publishes
}

// ApplyDefaults fills unset fields with the stock wrapper parameters.
func (p *Params) ApplyDefaults() {
	if p.App == "" {
		p.App = "sphinxserve"
	}
	if p.Image == "" {
		p.Image = "inful/sphinxserve"
	}
	if p.UID == 0 {
		p.UID = 1000
	}
	if p.Socket == "" {
		p.Socket = "localhost:8888"
	}
}

// The wrapper script escapes its own runtime variables with a backslash so
// the heredoc leaves them for the wrapper's shell, while template fields are
// baked in at install time.
var installTmpl = template.Must(template.New("install").Parse(`mkdir -p ~/bin
cat > ~/bin/{{.App}} << EOF
#!/bin/bash

DOCS_PATH=\${1:-\$PWD}
USERID="{{.UID}}"
SOCKET="{{.Socket}}"
APP_PORT=\${SOCKET#*:}

usage () {
    echo "Usage: {{.App}} [-h] [DOCS_PATH]    (default: \$PWD)"
    exit 1; }

[ "\$1" == "-h" ] || [ "\$1" == "--help" ] && usage

docker run -it -u \$USERID -v \$DOCS_PATH:/host \
    -p \$APP_PORT:\$APP_PORT {{.Image}} \
    serve --socket 0.0.0.0:\$APP_PORT /host
EOF
chmod 755 ~/bin/{{.App}}
`))

// WriteInstall renders the installation script for the given parameters.
func WriteInstall(w io.Writer, p Params) error {
	p.ApplyDefaults()
	if err := installTmpl.Execute(w, p); err != nil {
		return fmt.Errorf("render install script: %w", err)
	}
	return nil
}

// WriteUninstall renders the matching removal script.
func WriteUninstall(w io.Writer, p Params) error {
	p.ApplyDefaults()
	if _, err := fmt.Fprintf(w, "rm -f ~/bin/%s\n", p.App); err != nil {
		return fmt.Errorf("render uninstall script: %w", err)
	}
	return nil
}
