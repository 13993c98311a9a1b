package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	var (
		query  string
		limit  int
		cursor string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored transactions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()
			page, err := eng.Page(cmd.Context(), query, limit, cursor)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(page)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tCODE\tMETHOD\tHOST\tPATH\tDURATION")
			for _, tx := range page.Items {
				code := "-"
				if c := tx.ResponseCode(); c > 0 {
					code = fmt.Sprint(c)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", tx.ID, tx.Status, code, tx.Method, tx.Host, tx.Path, tx.Duration)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if page.NextCursor != "" {
				fmt.Fprintf(out, "next: --cursor %s\n", page.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter on method, path, host, status or code")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "cursor from a previous page")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}

func purgeCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Apply the retention policy now",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()
			run := eng.Maintain
			if force {
				run = eng.ForcePurge
			}
			res, err := run(cmd.Context())
			if err != nil {
				return err
			}
			if !res.Purged {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped (%s), period %s\n", res.Skipped, res.Period)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d transactions older than %s\n", res.Deleted, res.Threshold.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore the cleanup cooldown")
	return cmd
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()
			n, err := eng.ClearAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d transactions\n", n)
			return nil
		},
	}
}
