package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mbaylis/curator/internal/config"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List configured labeling sessions",
	Long: `List every configured labeling session with its id, name, batch
size, source directory, and output backend.`,
	RunE: runSessionsList,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	sessions, _, closeStores, err := openCollections(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	datas, err := sessions.List()
	if err != nil {
		return err
	}
	if len(datas) == 0 {
		fmt.Println("No sessions configured.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBATCH\tOPTIONS\tSOURCE\tOUTPUT")
	for _, data := range datas {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%s\n",
			data.ID, data.Name, data.BatchSize, len(data.TagOptions),
			data.Source.Directory, data.Output.Type)
	}
	return w.Flush()
}
