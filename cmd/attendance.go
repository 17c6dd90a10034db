package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/andresmejia3/rollcall/internal/attendance"
	"github.com/andresmejia3/rollcall/internal/store"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/spf13/cobra"
)

// AttendanceOptions holds the search flags.
type AttendanceOptions struct {
	StudentID string
	Date      string
	From      string
	To        string
	Days      int
	Limit     int
}

var attendanceOpts AttendanceOptions

var attendanceCmd = &cobra.Command{
	Use:     "attendance",
	Aliases: []string{"history"},
	Short:   "Search attendance history",
	Example: "  rollcall attendance --student S001\n" +
		"  rollcall attendance --date 2026-03-09\n" +
		"  rollcall attendance --from 2026-03-01 --to 2026-03-31\n" +
		"  rollcall attendance --days 7",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runAttendance(cmd, attendanceOpts)
	},
}

func init() {
	f := attendanceCmd.Flags()
	f.StringVarP(&attendanceOpts.StudentID, "student", "s", "", "Only this student ID")
	f.StringVarP(&attendanceOpts.Date, "date", "d", "", "Only this day (YYYY-MM-DD)")
	f.StringVar(&attendanceOpts.From, "from", "", "First day, inclusive (YYYY-MM-DD)")
	f.StringVar(&attendanceOpts.To, "to", "", "Last day, inclusive (YYYY-MM-DD)")
	f.IntVar(&attendanceOpts.Days, "days", 0, "Only the last N days, today included")
	f.IntVarP(&attendanceOpts.Limit, "limit", "n", 0, "Maximum number of rows (0 = all)")
	rootCmd.AddCommand(attendanceCmd)
}

// buildFilter turns the flags into a store filter. --date and --days are shortcuts for a range
// and cannot be combined with --from/--to.
func buildFilter(opts AttendanceOptions, now time.Time) (store.Filter, error) {
	f := store.Filter{StudentID: strings.TrimSpace(opts.StudentID), Limit: opts.Limit}

	ranged := opts.From != "" || opts.To != ""
	shortcuts := 0
	if opts.Date != "" {
		shortcuts++
	}
	if opts.Days != 0 {
		shortcuts++
	}
	if shortcuts > 1 || (shortcuts == 1 && ranged) {
		return f, errors.New("use only one of --date, --days or --from/--to")
	}

	var err error
	switch {
	case opts.Date != "":
		if f.From, err = parseDay(opts.Date); err != nil {
			return f, fmt.Errorf("invalid --date: %w", err)
		}
		f.To = f.From
	case opts.Days != 0:
		if opts.Days < 0 {
			return f, fmt.Errorf("--days must be positive, got %d", opts.Days)
		}
		f.From = attendance.Day(now).AddDate(0, 0, -(opts.Days - 1))
	default:
		if opts.From != "" {
			if f.From, err = parseDay(opts.From); err != nil {
				return f, fmt.Errorf("invalid --from: %w", err)
			}
		}
		if opts.To != "" {
			if f.To, err = parseDay(opts.To); err != nil {
				return f, fmt.Errorf("invalid --to: %w", err)
			}
		}
		if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
			return f, errors.New("--to is before --from")
		}
	}
	return f, nil
}

func parseDay(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), time.Local)
}

func runAttendance(cmd *cobra.Command, opts AttendanceOptions) error {
	filter, err := buildFilter(opts, time.Now())
	if err != nil {
		utils.ShowError("Invalid search", err)
		return err
	}

	records, err := DB.SearchAttendance(cmd.Context(), filter)
	if err != nil {
		utils.ShowError("Failed to search attendance", err)
		return err
	}

	if len(records) == 0 {
		fmt.Println("No attendance records found.")
		return nil
	}
	return printAttendance(os.Stdout, records)
}

func printAttendance(out io.Writer, records []types.AttendanceEvent) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "DATE\tTIME\tSTUDENT ID\tNAME")
	fmt.Fprintln(w, "----\t----\t----------\t----")
	for _, r := range records {
		name := r.Name
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Date.Format(time.DateOnly), r.RecordedAt.Local().Format(time.TimeOnly), r.StudentID, name)
	}
	fmt.Fprintf(w, "\n%d record(s)\n", len(records))
	return w.Flush()
}
