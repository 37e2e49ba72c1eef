package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/ssh-vom/archive-scout/internal/history"
)

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recent searches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := history.DefaultPath()
			if err != nil {
				return err
			}
			searches, err := history.NewStore(path).Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(searches) == 0 {
				fmt.Fprintln(out, "No saved searches.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"#", "Search", "Author", "Types", "When"})
			for index := len(searches) - 1; index >= 0; index-- {
				search := searches[index]
				t.AppendRow(table.Row{
					len(searches) - index,
					search.Label(),
					search.Query.Author,
					strings.Join(search.FileTypes, ","),
					search.SearchedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			t.Render()
			return nil
		},
	}
}
