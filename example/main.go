package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Zereker/i3ipc"
)

func main() {
	var (
		socketPath string
		msgType    string
		monitor    bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "i3ipc-msg [payload]",
		Short: "Send a message to i3/sway and print the reply",
		Long: "Send one IPC message and print the JSON reply. With --monitor the\n" +
			"payload is a list of event names and events are printed as they arrive.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var opts []i3ipc.Option
			if verbose {
				opts = append(opts, i3ipc.LoggerOption(slog.New(slog.NewTextHandler(os.Stderr,
					&slog.HandlerOptions{Level: slog.LevelDebug}))))
			}

			conn, err := dial(ctx, socketPath, opts...)
			if err != nil {
				return err
			}
			defer conn.Close()

			payload := ""
			if len(args) == 1 {
				payload = args[0]
			}

			if monitor {
				return watch(ctx, conn, payload)
			}

			t, err := i3ipc.ParseMessageType(msgType)
			if err != nil {
				return err
			}

			resp, err := i3ipc.Request[json.RawMessage](ctx, conn, t, payload)
			if err != nil {
				return err
			}
			return printJSON(resp.Body)
		},
	}

	cmd.Flags().StringVarP(&socketPath, "socket", "s", "", "IPC socket path (default: discovered)")
	cmd.Flags().StringVarP(&msgType, "type", "t", "run_command", "message type name or code")
	cmd.Flags().BoolVarP(&monitor, "monitor", "m", false, "subscribe and print events")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log connection details to stderr")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func dial(ctx context.Context, path string, opts ...i3ipc.Option) (*i3ipc.Conn, error) {
	if path == "" {
		return i3ipc.DialDefault(ctx, opts...)
	}
	return i3ipc.Dial(ctx, path, opts...)
}

// watch subscribes to the events named in payload (a JSON array) and
// prints each one until interrupted.
func watch(ctx context.Context, conn *i3ipc.Conn, payload string) error {
	var events []string
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &events); err != nil {
			return fmt.Errorf("events must be a JSON array: %w", err)
		}
	}

	if err := conn.Subscribe(ctx, events...); err != nil {
		return err
	}

	err := conn.Run(ctx, func(m i3ipc.Message) error {
		fmt.Printf("%s: %s\n", m.Type, m.Payload)
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func printJSON(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
