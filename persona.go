package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	xstrings "github.com/charmbracelet/x/exp/strings"
	"github.com/talentos/talentos/internal/proto"
)

func personaNames() []string {
	names := make([]string, 0, len(proto.Personas))
	for _, p := range proto.Personas {
		names = append(names, string(p))
	}
	return names
}

func validatePersona(s string) (proto.Persona, error) {
	p := proto.Persona(s)
	if !p.Valid() {
		return p, talentosError{
			err:    newUserErrorf("Persona %q is not one of %s.", s, xstrings.EnglishJoin(personaNames(), true)),
			reason: "Invalid persona.",
		}
	}
	return p, nil
}

// pickPersona asks the user which persona to analyze with, starting on the
// configured one.
func pickPersona(current proto.Persona) (proto.Persona, error) {
	options := make([]huh.Option[proto.Persona], 0, len(proto.Personas))
	for _, p := range proto.Personas {
		options = append(options, huh.NewOption(fmt.Sprintf("%s  %s", p, stderrStyles().Comment.Render(p.Description())), p))
	}
	selected := current
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[proto.Persona]().
				Title("Who should read this resume?").
				Options(options...).
				Value(&selected),
		),
	).WithOutput(os.Stderr).Run()
	if err != nil {
		return current, talentosError{err, "Could not pick a persona."}
	}
	return selected, nil
}
