package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/nebari-dev/taskboard/internal/ordering"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that stage and task positions are dense",
	Long: `Walk every board and stage and report any scope whose positions are not
exactly 1..N.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		problems, err := checkOrdering(context.Background(), a.DB, os.Stdout)
		if err != nil {
			return err
		}
		if problems > 0 {
			return fmt.Errorf("%d scope(s) are not dense", problems)
		}
		fmt.Println("All positions are dense")
		return nil
	},
}

// checkOrdering reports every board whose stages, and every stage whose
// tasks, are not dense. It returns the number of scopes reported.
func checkOrdering(ctx context.Context, gdb *gorm.DB, w io.Writer) (int, error) {
	var boards []models.Board
	if err := gdb.WithContext(ctx).Order("created_at ASC").Find(&boards).Error; err != nil {
		return 0, err
	}

	problems := 0
	stages := ordering.NewGormStore(gdb, ordering.Stages)
	tasks := ordering.NewGormStore(gdb, ordering.Tasks)
	for _, board := range boards {
		entries, err := stages.List(ctx, board.ID)
		if err != nil {
			return problems, err
		}
		if err := ordering.CheckDense(entries); err != nil {
			fmt.Fprintf(w, "board %s (%s): %v\n", board.Name, board.ID, err)
			problems++
		}

		for _, stage := range entries {
			taskEntries, err := tasks.List(ctx, stage.ID)
			if err != nil {
				return problems, err
			}
			if err := ordering.CheckDense(taskEntries); err != nil {
				fmt.Fprintf(w, "stage %s of board %s: %v\n", stage.ID, board.Name, err)
				problems++
			}
		}
	}
	return problems, nil
}
