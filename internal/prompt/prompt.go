// SPDX-License-Identifier: MIT

// Package prompt asks interactively for whatever required configuration
// is still missing once defaults, file, env, and CLI flags have all been
// merged, instead of failing the run outright.
package prompt

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/nicomem/gawr/internal/config"
)

// IsInteractive reports whether stdin is a terminal, and therefore whether
// FillMissing can ask the user anything at all.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// FillMissing prompts for cfg.ID, cfg.Out, and cfg.Cache if any are still
// empty, and returns cfg unchanged otherwise. It must only be called when
// IsInteractive reports true; callers in a non-terminal context should
// instead surface the missing-value error from Config.Validate directly.
func FillMissing(cfg *config.Config) error {
	var fields []huh.Field

	if cfg.ID == "" {
		fields = append(fields, huh.NewInput().
			Title("Video or playlist ID/URL").
			Value(&cfg.ID).
			Validate(notEmpty("id")))
	}
	if cfg.Out == "" {
		fields = append(fields, huh.NewInput().
			Title("Output directory").
			Value(&cfg.Out).
			Validate(notEmpty("out")))
	}
	if cfg.Cache == "" {
		fields = append(fields, huh.NewInput().
			Title("Cache database path").
			Value(&cfg.Cache).
			Validate(notEmpty("cache")))
	}

	if len(fields) == 0 {
		return nil
	}

	form := huh.NewForm(huh.NewGroup(fields...))
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt: %w", err)
	}

	return nil
}

func notEmpty(name string) func(string) error {
	return func(v string) error {
		if v == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		return nil
	}
}
