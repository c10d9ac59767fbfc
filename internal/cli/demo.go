package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Atomika/internal/compiler"
	"github.com/shaiso/Atomika/internal/engine"
	"github.com/shaiso/Atomika/internal/flow"
	"github.com/shaiso/Atomika/internal/notify"
	"github.com/shaiso/Atomika/internal/scheduler"
	"github.com/shaiso/Atomika/internal/storage"
)

// NewDemoCmd создаёт команду демонстрационного запуска: компилирует
// встроенный поток и выполняет его на in-memory storage, печатая
// переходы состояний.
func NewDemoCmd() *cobra.Command {
	var parallel bool
	var failAt string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Compile and run a built-in example flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			graph, err := compiler.Compile(demoFlow(failAt))
			if err != nil {
				return err
			}

			var sched scheduler.Scheduler
			if parallel {
				sched = scheduler.NewParallel(4)
			} else {
				sched = scheduler.NewSerial()
			}
			defer sched.Stop()

			eng, err := engine.New(engine.Config{
				Graph:     graph,
				Storage:   storage.NewMemory(),
				Scheduler: sched,
			})
			if err != nil {
				return err
			}

			eng.AtomNotifier().Register(notify.Any, func(tr notify.Transition) {
				fmt.Fprintf(w, "  %-12s %s -> %s\n", tr.Atom, tr.From, tr.To)
			})

			state, runErr := eng.Run(ctx)
			fmt.Fprintf(w, "flow finished: %s\n", state)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&parallel, "parallel", false, "Use the parallel scheduler")
	cmd.Flags().StringVar(&failAt, "fail-at", "", "Make the named atom fail (shows compensation)")

	return cmd
}

// demoFlow — поток заказа: резервирование, оплата под retry, уведомление.
func demoFlow(failAt string) *flow.Flow {
	task := func(name string, requires, provides []string) *flow.Task {
		return flow.NewTask(flow.TaskConfig{
			Name:     name,
			Requires: requires,
			Provides: provides,
			Execute: func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
				if name == failAt {
					return nil, fmt.Errorf("%s failed on purpose", name)
				}
				out := make(map[string]any, len(provides))
				for _, p := range provides {
					out[p] = name + ":" + p
				}
				return out, nil
			},
			Revert: func(ctx context.Context, inputs map[string]any) error {
				return nil
			},
		})
	}

	charge := flow.NewRetry(flow.RetryConfig{
		Name:   "charge-guard",
		Policy: flow.RetryPolicy{MaxAttempts: 3},
		Child: flow.NewLinear("charge-seq").Add(
			task("charge", []string{"reservation"}, []string{"receipt"}),
		),
	})

	return flow.NewLinear("order").Add(
		task("reserve", nil, []string{"reservation"}),
		charge,
		flow.NewUnordered("notify-all").Add(
			task("email", []string{"receipt"}, nil),
			task("audit", []string{"receipt"}, nil),
		),
	)
}
