package cmd

import (
	"fmt"
	"io"
	"strings"

	"resource-downloader/resource"
	"resource-downloader/ui"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists installed projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := bootstrap(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		filter, _ := cmd.Flags().GetString("filter")
		renderList(cmd.OutOrStdout(), filterEntries(a.cache.List(), filter))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("filter", "f", "", "fuzzy filter on project title or ID")
}

// entrySource lets fuzzy match against "title id" of each entry.
type entrySource []resource.InstalledEntry

func (s entrySource) String(i int) string {
	return s[i].Title + " " + s[i].ProjectID
}

func (s entrySource) Len() int {
	return len(s)
}

// filterEntries keeps entries matching filter, best match first. An empty filter keeps
// everything in the given order.
func filterEntries(entries []resource.InstalledEntry, filter string) []resource.InstalledEntry {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return entries
	}
	matches := fuzzy.FindFrom(filter, entrySource(entries))
	out := make([]resource.InstalledEntry, 0, len(matches))
	for _, m := range matches {
		out = append(out, entries[m.Index])
	}
	return out
}

func renderList(w io.Writer, entries []resource.InstalledEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No projects installed.")
		return
	}
	for _, e := range entries {
		name := e.Title
		if name == "" {
			name = e.ProjectID
		}
		pin := ""
		if e.Pinned {
			pin = ui.Faint.Render(" (pinned)")
		}
		fmt.Fprintf(w, "%-13s %-32s %-20s %s%s\n",
			e.Kind, name, versionLabel(e.Version.VersionNumber, e.Version.ID), ui.Faint.Render(e.ProjectID), pin)
	}
}
