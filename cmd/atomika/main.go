// Atomika CLI — инструмент командной строки движка атомов.
//
// Использование:
//
//	atomika [--json] <command> [flags]
//
// Команды:
//
//	demo    Скомпилировать и выполнить встроенный пример потока
//	status  Показать состояние запуска в PostgreSQL
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Atomika/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "atomika",
		Short:         "Atomika — resumable DAG engine for atomic workflows",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewDemoCmd(),
		cli.NewStatusCmd(outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
