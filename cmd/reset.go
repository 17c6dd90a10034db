package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetTables     bool
	resetAttendance bool
	resetModelFiles bool
	resetYes        bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (Database, Attendance, Model)",
	Long:  "Clears stored data. By default, it resets everything. Use flags to clear specific components.",
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing EVERYTHING
		if !resetTables && !resetAttendance && !resetModelFiles {
			resetTables = true
			resetModelFiles = true
		}

		reader := bufio.NewReader(os.Stdin)
		confirm := func(prompt string) bool {
			return resetYes || utils.Confirm(reader, os.Stdout, prompt)
		}

		if resetTables {
			if confirm("⚠️  Are you sure you want to DROP all database tables (students and attendance)?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err)
				}
			}
		} else if resetAttendance {
			if confirm("⚠️  Are you sure you want to delete all attendance records?") {
				n, err := DB.ClearAttendance(cmd.Context())
				if err != nil {
					utils.Die("Failed to clear attendance", err)
				}
				fmt.Printf("🗑️  Deleted %d attendance record(s)\n", n)
			}
		}

		if resetModelFiles {
			if confirm("⚠️  Are you sure you want to delete the trained model and identity mapping?") {
				fmt.Println("🗑️  Clearing Model Files...")
				applyRecognizeFlags(cmd, recognizeOpts, Cfg)
				if err := modelFiles(Cfg).Remove(); err != nil {
					utils.ShowError("Failed to remove model files", err)
				}
			}
		}

		fmt.Println("✨ System Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetTables, "tables", false, "Drop the PostgreSQL tables (students and attendance)")
	resetCmd.Flags().BoolVar(&resetAttendance, "attendance", false, "Delete attendance records but keep students")
	resetCmd.Flags().BoolVar(&resetModelFiles, "model-files", false, "Delete the trained model and identity mapping")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	resetCmd.Flags().StringVar(&recognizeOpts.Model, "model", "face_model.yml", "Trained model file")
	resetCmd.Flags().StringVar(&recognizeOpts.Mapping, "mapping", "id_mapping.json", "Identity mapping file")
	rootCmd.AddCommand(resetCmd)
}

// resetNeedsDB is false when only the model files are being cleared.
func resetNeedsDB() bool {
	return resetTables || resetAttendance || !resetModelFiles
}
