package main

import (
	"chat-ingest/domain"
	"chat-ingest/infrastructure/storage"
	"chat-ingest/runtime/workers"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	backendName := flags.StringP("backend", "b", storage.SQLiteBackend, "Storage backend: sqlite or badger")
	dbPath := flags.String("db", "data/ingest.db", "Path to the database file (sqlite) or directory (badger)")
	conversation := flags.StringP("conversation", "c", "", "List one conversation, oldest first")
	unprocessed := flags.BoolP("unprocessed", "u", false, "List messages not reconciled yet")
	id := flags.String("id", "", "Show one message")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *id == "" && *conversation == "" && !*unprocessed {
		return errors.New("one of --id, --conversation or --unprocessed is required")
	}

	backend, err := storage.OpenBackendReadOnly(*backendName, *dbPath, logs.GetLoggerFromLevel(slog.LevelError))
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx := context.Background()
	var messages []domain.Message
	switch {
	case *id != "":
		msg, err := backend.Messages.Get(ctx, *id)
		if err != nil {
			return err
		}
		messages = []domain.Message{msg}
	case *conversation != "":
		messages, err = backend.Messages.ListByConversation(ctx, *conversation)
	default:
		messages, err = backend.Messages.ListUnprocessed(ctx)
	}
	if err != nil {
		return err
	}

	render(out, messages)
	return nil
}

func render(out io.Writer, messages []domain.Message) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Time", "Dir", "Type", "From", "To", "Processed", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	table.AppendBulk(lo.Map(messages, func(m domain.Message, _ int) []string {
		direction := "in"
		if m.IsOutbound {
			direction = "out"
		}
		return []string{
			m.ID,
			m.Timestamp.Format(time.DateTime),
			direction,
			string(m.Type),
			lo.FromPtrOr(m.From, "-"),
			lo.FromPtrOr(m.To, "-"),
			strconv.FormatBool(m.Processed),
			workers.Summary(m, 40),
		}
	}))
	table.Render()
	fmt.Fprintf(out, "%d message(s)\n", len(messages))
}
