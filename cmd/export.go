package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"resource-downloader/planner"
	"resource-downloader/resource"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// projectList is the TOML file export writes and import-list reads.
type projectList struct {
	GameVersion string        `toml:"game-version"`
	Loader      string        `toml:"loader"`
	Projects    []listedEntry `toml:"project"`
}

type listedEntry struct {
	ID      string `toml:"id"`
	Title   string `toml:"title,omitempty"`
	Kind    string `toml:"kind,omitempty"`
	Version string `toml:"version,omitempty"`
	Pinned  bool   `toml:"pinned,omitempty"`
	// Range limits the version numbers chosen when the project is not pinned.
	Range string `toml:"range,omitempty"`
}

func (p listedEntry) constraint() resource.Constraint {
	c := resource.Constraint{Range: p.Range}
	if p.Pinned {
		c.VersionID = p.Version
	}
	return c
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Writes the installed projects to a TOML list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := bootstrap(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		list := exportList(a)
		data, err := toml.Marshal(list)
		if err != nil {
			return fmt.Errorf("failed to encode project list: %w", err)
		}
		if err := os.WriteFile(args[0], data, 0644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d project(s) to %s\n", len(list.Projects), args[0])
		return nil
	},
}

var importListCmd = &cobra.Command{
	Use:   "import-list <file>",
	Short: "Installs the projects of a TOML list written by export",
	Long: `Installs every project of the list for the configured game version and loader.
Pinned projects are installed at their listed version and stay pinned; the others get
the best compatible version.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := bootstrap(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		list, err := readProjectList(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		_, err = applyList(ctx, a, list, applyOptionsFrom(cmd), cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importListCmd)
	addApplyFlags(importListCmd)
}

func exportList(a *app) projectList {
	target := a.cfg.Target()
	list := projectList{GameVersion: target.GameVersion, Loader: target.Loader}
	for _, e := range a.cache.List() {
		list.Projects = append(list.Projects, listedEntry{
			ID:      e.ProjectID,
			Title:   e.Title,
			Kind:    e.Kind.String(),
			Version: e.Version.ID,
			Pinned:  e.Pinned,
		})
	}
	return list
}

func readProjectList(data []byte) (projectList, error) {
	var list projectList
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&list); err != nil {
		return projectList{}, fmt.Errorf("invalid project list: %w", err)
	}
	for i, p := range list.Projects {
		if p.ID == "" {
			return projectList{}, fmt.Errorf("project %d has no id", i+1)
		}
		if p.Pinned && p.Version == "" {
			return projectList{}, fmt.Errorf("project %s is pinned without a version", p.ID)
		}
		if err := p.constraint().Validate(); err != nil {
			return projectList{}, fmt.Errorf("project %s: %w", p.ID, err)
		}
	}
	return list, nil
}

// applyList installs list's projects and restores their pins.
func applyList(ctx context.Context, a *app, list projectList, opts applyOptions, out io.Writer) (updateSummary, error) {
	target := a.cfg.Target()
	if list.GameVersion != "" && (list.GameVersion != target.GameVersion || list.Loader != target.Loader) {
		a.log.Warnw("Project list was exported for another target",
			zap.String("list_target", resource.Target{GameVersion: list.GameVersion, Loader: list.Loader}.String()),
			zap.Stringer("target", target))
	}

	desired := make([]planner.Desired, 0, len(list.Projects))
	for _, p := range list.Projects {
		desired = append(desired, planner.Desired{ProjectID: p.ID, Constraint: p.constraint()})
	}

	summary, err := apply(ctx, a, desired, opts, out)
	if !opts.dryRun {
		pinUpToDate(ctx, a, summary.Plan)
	}
	return summary, err
}
