package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/andresmejia3/rollcall/internal/dataset"
	"github.com/andresmejia3/rollcall/internal/store"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/spf13/cobra"
)

var deleteYes bool

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Manage the student registry",
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered students",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		students, err := DB.ListStudents(cmd.Context())
		if err != nil {
			utils.ShowError("Failed to list students", err)
			return err
		}

		if len(students) == 0 {
			fmt.Println("No students registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tREGISTERED")
		fmt.Fprintln(w, "--\t----\t----------")
		for _, s := range students {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.StudentID, s.Name, s.RegisteredAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var studentsAddCmd = &cobra.Command{
	Use:   "add <student_id> <name>",
	Short: "Register a student (or update the name of an existing one)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, name, err := idAndName(args)
		if err != nil {
			return err
		}
		if err := DB.UpsertStudent(cmd.Context(), id, name); err != nil {
			utils.ShowError("Failed to register student", err)
			return err
		}
		fmt.Printf("✅ Student %s registered as '%s'\n", id, name)
		return nil
	},
}

var studentsRenameCmd = &cobra.Command{
	Use:   "rename <student_id> <name>",
	Short: "Change a registered student's name",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, name, err := idAndName(args)
		if err != nil {
			return err
		}
		if err := DB.RenameStudent(cmd.Context(), id, name); err != nil {
			utils.ShowError("Failed to rename student", err)
			return err
		}
		fmt.Printf("✅ Student %s renamed to '%s'\n", id, name)
		return nil
	},
}

var studentsDeleteCmd = &cobra.Command{
	Use:   "delete <student_id>",
	Short: "Delete a student, their attendance and their dataset folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id := strings.TrimSpace(args[0])
		ctx := cmd.Context()

		label := id
		if st, err := DB.GetStudent(ctx, id); err == nil && st.Name != "" {
			label = fmt.Sprintf("%s (%s)", id, st.Name)
		} else if err != nil && !errors.Is(err, store.ErrStudentNotFound) {
			utils.ShowError("Failed to look up student", err)
			return err
		}

		if !deleteYes && !utils.Confirm(bufio.NewReader(os.Stdin), os.Stdout, fmt.Sprintf("⚠️  Delete student %s with all attendance and dataset images?", label)) {
			fmt.Println("Aborted.")
			return nil
		}

		removed, err := DB.DeleteStudent(ctx, id)
		if err != nil && !errors.Is(err, store.ErrStudentNotFound) {
			utils.ShowError("Failed to delete student", err)
			return err
		}
		if err == nil {
			fmt.Printf("🗑️  Deleted student %s and %d attendance record(s)\n", id, removed)
		}

		if _, err := os.Stat(filepath.Join(Cfg.Paths.Dataset, id)); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ℹ️  No dataset folder for %s\n", id)
			return nil
		}
		if err := dataset.Remove(Cfg.Paths.Dataset, id); err != nil {
			utils.ShowError("Failed to remove dataset folder", err)
			return err
		}
		fmt.Printf("🗑️  Removed dataset folder for %s\n", id)
		fmt.Fprintln(os.Stderr, "ℹ️  Run 'rollcall train' so the model forgets this student.")
		return nil
	},
}

func init() {
	studentsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")
	studentsDeleteCmd.Flags().StringVar(&recognizeOpts.Dataset, "dataset", "dataset", "Dataset directory")
	studentsDeleteCmd.PreRun = func(cmd *cobra.Command, args []string) {
		applyRecognizeFlags(cmd, recognizeOpts, Cfg)
	}

	studentsCmd.AddCommand(studentsListCmd, studentsAddCmd, studentsRenameCmd, studentsDeleteCmd)
	rootCmd.AddCommand(studentsCmd)
}

// idAndName joins everything after the ID so unquoted names with spaces work.
func idAndName(args []string) (string, string, error) {
	id := strings.TrimSpace(args[0])
	name := strings.TrimSpace(strings.Join(args[1:], " "))
	if id == "" || name == "" {
		return "", "", errors.New("student ID and name must not be empty")
	}
	return id, name, nil
}
