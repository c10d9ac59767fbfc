package cli

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Atomika/internal/storage"
)

// NewStatusCmd создаёт команду просмотра состояния запуска в PostgreSQL.
func NewStatusCmd(outputFn func() *Output) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "status FLOW_ID",
		Short: "Show atom states of a flow run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := cmd.Context()

			flowID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid flow id: %w", err)
			}

			pool, err := storage.NewPool(ctx, dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			st := storage.NewPostgres(pool, flowID)
			flowState, err := st.FlowState(ctx)
			if err != nil {
				return err
			}
			snapshot, err := st.Snapshot(ctx)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(snapshot))
			for name := range snapshot {
				names = append(names, name)
			}
			sort.Strings(names)

			type atomRow struct {
				Atom     string `json:"atom"`
				State    string `json:"state"`
				Attempts int    `json:"attempts"`
			}

			rows := make([][]string, 0, len(names))
			jsonRows := make([]atomRow, 0, len(names))
			for _, name := range names {
				attempts, err := st.Attempts(ctx, name)
				if err != nil {
					return err
				}
				rows = append(rows, []string{name, string(snapshot[name]), fmt.Sprintf("%d", attempts)})
				jsonRows = append(jsonRows, atomRow{Atom: name, State: string(snapshot[name]), Attempts: attempts})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "flow %s: %s\n", flowID, flowState)
			out.Print([]string{"ATOM", "STATE", "ATTEMPTS"}, rows, jsonRows)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (default: DB_URL env or local dev database)")

	return cmd
}
