package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/spf13/cobra"

	"github.com/sentinel-gate/mcprelay/internal/domain/session"
)

var inspectVerbose bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <session-file>",
	Short: "Print a saved session's contents to stdout",
	Long: `Load a saved session and print a sequence-ordered summary of every
message: direction, method, jsonrpc id, correlation, and whether an
operator modified it before it was forwarded.

With --verbose, each message's full JSON payload is printed too,
including the original payload for anything modified.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVarP(&inspectVerbose, "verbose", "v", false, "show full JSON payloads")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	store, err := session.Load(args[0])
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	rec := store.ToRecord()
	fmt.Printf("Session: %s\n", rec.ID)
	fmt.Printf("Transport: %s\n", rec.Transport)
	if rec.ServerCommand != "" {
		fmt.Printf("Server command: %s\n", rec.ServerCommand)
	}
	if rec.ServerURL != "" {
		fmt.Printf("Server URL: %s\n", rec.ServerURL)
	}
	fmt.Printf("Started: %s\n", rec.StartedAt.Format("2006-01-02T15:04:05Z07:00"))
	if rec.EndedAt != nil {
		fmt.Printf("Ended: %s\n", rec.EndedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	fmt.Printf("Messages: %d\n", len(rec.Messages))
	if len(rec.Metadata) > 0 {
		md, _ := json.Marshal(rec.Metadata)
		fmt.Printf("Metadata: %s\n", md)
	}
	fmt.Println("---")

	for _, msg := range rec.Messages {
		arrow := "←"
		if msg.Direction == session.ClientToServer {
			arrow = "→"
		}
		methodStr := msg.Method
		if methodStr == "" {
			methodStr = "(response)"
		}
		idStr := ""
		if msg.HasJSONRPCID {
			idStr = fmt.Sprintf(" id=%v", msg.JSONRPCID)
		}
		corrStr := ""
		if msg.CorrelatedID != "" {
			corrStr = fmt.Sprintf(" corr=%s", shortID(msg.CorrelatedID))
		}
		modifiedStr := ""
		if msg.Modified {
			modifiedStr = " [MODIFIED]"
		}

		fmt.Printf("  #%03d %s %s%s%s%s\n", msg.Sequence, arrow, methodStr, idStr, corrStr, modifiedStr)

		if inspectVerbose {
			printPayload("      ", msg.Raw)
			if msg.Modified && msg.OriginalRaw != nil {
				fmt.Print("      [original]")
				printPayload("      ", msg.OriginalRaw)
			}
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

func printPayload(indent string, msg jsonrpc.Message) {
	raw, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		fmt.Printf("%s<unencodable: %v>\n", indent, err)
		return
	}
	var pretty interface{}
	if err := json.Unmarshal(raw, &pretty); err != nil {
		fmt.Printf("%s%s\n", indent, raw)
		return
	}
	out, err := json.MarshalIndent(pretty, indent, "  ")
	if err != nil {
		fmt.Printf("%s%s\n", indent, raw)
		return
	}
	fmt.Printf("%s%s\n", indent, out)
}
