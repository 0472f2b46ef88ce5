package commands

import (
	"os"

	"git.home.luguber.info/inful/sphinxserve/internal/config"
	"git.home.luguber.info/inful/sphinxserve/internal/installer"
)

// InstallCmd prints a shell script installing a containerized wrapper. It is
// meant to be run from inside the published container image and piped into a
// shell on the host.
type InstallCmd struct {
	App    string `name:"app" help:"Wrapper name under ~/bin (default: sphinxserve)."`
	Image  string `name:"image" help:"Container image the wrapper runs (default: inful/sphinxserve)."`
	Socket string `short:"s" name:"socket" help:"host:port the wrapper publishes (default: localhost:8888)."`
	UID    int    `short:"u" name:"uid" help:"Numeric uid the container runs as (default: 1000)."`
}

func (i *InstallCmd) Run(g *Global) error {
	params, err := i.params(g)
	if err != nil {
		return err
	}
	return installer.WriteInstall(os.Stdout, params)
}

// UninstallCmd prints the matching removal script.
type UninstallCmd struct {
	App string `name:"app" help:"Wrapper name under ~/bin (default: sphinxserve)."`
}

func (u *UninstallCmd) Run(_ *Global) error {
	return installer.WriteUninstall(os.Stdout, installer.Params{App: u.App})
}

// params layers CLI flags over the file configuration so an installed wrapper
// reflects the same socket and uid the serve command would use.
func (i *InstallCmd) params(g *Global) (installer.Params, error) {
	cfg, err := config.Load(g.CLI.Config)
	if err != nil {
		return installer.Params{}, err
	}
	p := installer.Params{
		App:    i.App,
		Image:  i.Image,
		Socket: cfg.Socket,
		UID:    cfg.UID,
	}
	if i.Socket != "" {
		p.Socket = i.Socket
	}
	if i.UID != 0 {
		p.UID = i.UID
	}
	return p, nil
}
