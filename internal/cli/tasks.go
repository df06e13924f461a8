package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"taskbook/internal/models"
	"taskbook/internal/tasks"
	"taskbook/internal/view"
)

func newAddCmd(flags *globalFlags) *cobra.Command {
	var date, tag string

	cmd := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(s *tasks.Store) error {
				id, err := s.Add(cmd.Context(), strings.Join(args, " "), date, tag)
				if err != nil {
					return err
				}
				task, err := s.Get(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added task %d: %s\n", id, view.Label(task))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "Due date (YYYY-MM-DD or DD.MM.YYYY)")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Tag")
	return cmd
}

func newListCmd(flags *globalFlags) *cobra.Command {
	var (
		tag        string
		untagged   bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered by tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := view.AllTags
			switch {
			case untagged:
				sel = view.Tag("")
			case tag != "":
				sel = view.Tag(tag)
			}

			return withStore(cmd, flags, func(s *tasks.Store) error {
				list := s.ByTag(sel)
				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
					return nil
				}
				return printTasks(cmd, list)
			})
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Only show tasks with this tag")
	cmd.Flags().BoolVar(&untagged, "untagged", false, "Only show tasks without a tag")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.MarkFlagsMutuallyExclusive("tag", "untagged")
	return cmd
}

func printTasks(cmd *cobra.Command, list []models.Task) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, t := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, checkbox(t), view.Label(t))
	}
	return w.Flush()
}

func checkbox(t models.Task) string {
	if t.Completed {
		return "[x]"
	}
	return "[ ]"
}

func newEditCmd(flags *globalFlags) *cobra.Command {
	var text, date, tag string

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Edit a task's text, date or tag",
		Long:  "Edit a task. Only the given flags change; pass an empty --date or --tag to clear it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}

			var datePtr, tagPtr *string
			if cmd.Flags().Changed("date") {
				datePtr = &date
			}
			if cmd.Flags().Changed("tag") {
				tagPtr = &tag
			}

			return withStore(cmd, flags, func(s *tasks.Store) error {
				if !cmd.Flags().Changed("text") {
					current, err := s.Get(id)
					if err != nil {
						return err
					}
					text = current.Text
				}

				if err := s.Edit(cmd.Context(), id, text, datePtr, tagPtr); err != nil {
					return err
				}
				task, err := s.Get(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d: %s\n", id, view.Label(task))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "New text")
	cmd.Flags().StringVarP(&date, "date", "d", "", "New due date (empty to clear)")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "New tag (empty to clear)")
	return cmd
}

func newDoneCmd(flags *globalFlags, use, short string, completed bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, flags, func(s *tasks.Store) error {
				if err := s.SetCompleted(cmd.Context(), id, completed); err != nil {
					return err
				}
				task, err := s.Get(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", checkbox(task), view.Label(task))
				return nil
			})
		},
	}
}

func newRmCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, flags, func(s *tasks.Store) error {
				if err := s.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
				return nil
			})
		},
	}
}

func newTagsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the tags in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(s *tasks.Store) error {
				for _, tag := range s.Tags() {
					fmt.Fprintln(cmd.OutOrStdout(), tag)
				}
				return nil
			})
		},
	}
}

func newDueCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "due DATE",
		Short: "Show the tasks due on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(s *tasks.Store) error {
				list, err := s.ByDate(args[0])
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing due")
					return nil
				}
				for _, t := range list {
					fmt.Fprintln(cmd.OutOrStdout(), view.CalendarLine(t))
				}
				return nil
			})
		},
	}
}

func newAgendaCmd(flags *globalFlags) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Show open tasks grouped by due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(s *tasks.Store) error {
				out := cmd.OutOrStdout()
				now := time.Now()
				printed := 0
				for _, group := range s.Agenda() {
					var lines []string
					for _, t := range group.Tasks {
						if t.Completed && !all {
							continue
						}
						line := fmt.Sprintf("  %s %s", checkbox(t), view.CalendarLine(t))
						if t.IsOverdue(now) {
							line += "  (overdue)"
						}
						lines = append(lines, line)
					}
					if len(lines) == 0 {
						continue
					}

					header := "No date"
					if group.Date != "" {
						header = view.DisplayDate(group.Date)
					}
					fmt.Fprintln(out, header)
					for _, line := range lines {
						fmt.Fprintln(out, line)
					}
					printed++
				}
				if printed == 0 {
					fmt.Fprintln(out, "No tasks")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include completed tasks")
	return cmd
}
