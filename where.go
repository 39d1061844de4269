package main

import (
	"fmt"
	"io"

	"github.com/llehouerou/scrobbled/internal/config"
	"github.com/llehouerou/scrobbled/internal/errmsg"
	"github.com/llehouerou/scrobbled/internal/state"
)

// where prints the config files in the order they are read and the state
// database location.
func where(explicit string, stdout, stderr io.Writer) int {
	locations, err := config.Locations(explicit)
	if err != nil {
		return fail(stderr, errmsg.OpConfigLoad, err)
	}

	fmt.Fprintln(stdout, titleStyle.Render("Config files (later entries win):"))
	for _, loc := range locations {
		mark := hintStyle.Render("missing")
		if loc.Exists {
			mark = okStyle.Render("found")
		}
		fmt.Fprintf(stdout, "  %s  %s (%s)\n", mark, loc.Path, loc.Origin)
	}

	if _, err := config.Load(explicit); err != nil {
		fmt.Fprintln(stdout, errStyle.Render(errmsg.Format(errmsg.OpConfigLoad, err)))
	}

	if path, err := state.Path(); err == nil {
		fmt.Fprintln(stdout, titleStyle.Render("State database:"))
		fmt.Fprintln(stdout, "  "+path)
	}
	return 0
}
