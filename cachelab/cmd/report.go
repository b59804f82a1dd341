package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/hachisim/hachi/datarecording"
)

var reportCmd = &cobra.Command{
	Use:    "report",
	Short:  "Summarize a trace database recorded by the run command.",
	PreRun: applyEnvDefaults,
	Run:    reportTrace,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("trace", "",
		"trace database recorded by run --trace, without the extension")
	reportCmd.Flags().Int("top", 5,
		"number of slowest transactions to list")
}

// recordedTransaction mirrors the memory_transactions table.
type recordedTransaction struct {
	ID        string
	Location  string
	What      string
	StartTime float64
	EndTime   float64
	Address   uint64
	ByteSize  uint64
}

// recordedExecInfo mirrors the exec_info table.
type recordedExecInfo struct {
	Property string
	Value    string
}

func reportTrace(cmd *cobra.Command, _ []string) {
	tracePath, _ := cmd.Flags().GetString("trace")
	top, _ := cmd.Flags().GetInt("top")

	if tracePath == "" {
		log.Fatal("report requires --trace")
	}

	filename := tracePath + ".sqlite3"
	if _, err := os.Stat(filename); err != nil {
		log.Fatalf("cannot open trace database %s: %s", filename, err)
	}

	reader := datarecording.NewReader(filename)
	defer reader.Close()

	reader.MapTable("exec_info", recordedExecInfo{})
	reader.MapTable("memory_transactions", recordedTransaction{})

	printExecInfo(reader)
	printTransactionSummary(reader)
	printSlowestTransactions(reader, top)
}

func printExecInfo(reader datarecording.DataReader) {
	entries, _, err := reader.Query(
		context.Background(), "exec_info", datarecording.QueryParams{})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("execution")
	for _, entry := range entries {
		info := entry.(*recordedExecInfo)
		fmt.Printf("  %-18s %s\n", info.Property, info.Value)
	}
}

func printTransactionSummary(reader datarecording.DataReader) {
	entries, total, err := reader.Query(
		context.Background(), "memory_transactions",
		datarecording.QueryParams{})
	if err != nil {
		log.Fatal(err)
	}

	reads := 0
	var totalLatency float64
	for _, entry := range entries {
		txn := entry.(*recordedTransaction)
		if txn.What == "*mem.ReadReq" {
			reads++
		}
		totalLatency += txn.EndTime - txn.StartTime
	}

	fmt.Printf("transactions  %d\n", total)
	fmt.Printf("reads         %d\n", reads)
	fmt.Printf("writes        %d\n", total-reads)

	if total > 0 {
		fmt.Printf("avg latency   %.1f ns\n",
			totalLatency/float64(total)*1e9)
	}
}

func printSlowestTransactions(reader datarecording.DataReader, top int) {
	if top <= 0 {
		return
	}

	entries, _, err := reader.Query(
		context.Background(), "memory_transactions",
		datarecording.QueryParams{
			OrderBy: "EndTime - StartTime DESC",
			Limit:   top,
		})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("slowest transactions")
	for _, entry := range entries {
		txn := entry.(*recordedTransaction)
		fmt.Printf("  %-10s %-14s %-16s 0x%-10x %8.1f ns\n",
			txn.ID, txn.What, txn.Location, txn.Address,
			(txn.EndTime-txn.StartTime)*1e9)
	}
}
