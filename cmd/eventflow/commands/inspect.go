package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	awsev "github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	"github.com/charmbracelet/lipgloss"
	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/eventflow-io/eventflow/pkg/eventstream"
)

var (
	inspectJQ   string
	inspectFile string
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff6b6b"))
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [session-id]",
	Short: "List capture sessions or decode the frames of one",
	Long: `Without arguments, inspect lists all capture sessions in the store.
With a session ID, it reassembles the recorded chunks into frames and
prints each frame's headers and payload. With --file, it decodes a raw
wire dump instead of a session.

JSON payloads can be filtered with a jq expression:

  eventflow inspect 2f1c... --jq '.choices[0].delta.content'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var query *gojq.Query
		if inspectJQ != "" {
			q, err := gojq.Parse(inspectJQ)
			if err != nil {
				return fmt.Errorf("parse jq expression: %w", err)
			}
			query = q
		}

		if inspectFile != "" {
			if len(args) > 0 {
				return errors.New("--file and a session ID are mutually exclusive")
			}
			data, err := os.ReadFile(inspectFile)
			if err != nil {
				return err
			}
			return printFrames([][]byte{data}, query)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 0 {
			mans, err := store.Sessions()
			if err != nil {
				return err
			}
			if len(mans) == 0 {
				fmt.Println(dimStyle.Render("no capture sessions"))
				return nil
			}
			for _, m := range mans {
				fmt.Printf("%s  %s\n", labelStyle.Render(m.ID),
					dimStyle.Render(fmt.Sprintf("%s  %d chunks  %d bytes  %s",
						m.CreatedAt.Format("2006-01-02 15:04:05"), m.Chunks, m.Bytes, m.Source)))
			}
			return nil
		}

		chunks, err := store.Chunks(args[0])
		if err != nil {
			return err
		}
		return printFrames(chunks, query)
	},
}

func printFrames(chunks [][]byte, query *gojq.Query) error {
	n := 0
	dec := eventstream.NewFrameDecoder(func(msg awsev.Message) error {
		n++
		printFrame(n, msg, query)
		return nil
	})
	for _, chunk := range chunks {
		if err := dec.Feed(chunk); err != nil {
			return fmt.Errorf("frame %d: %w", n+1, err)
		}
	}
	if rest := dec.Buffered(); rest > 0 {
		fmt.Println(errStyle.Render(fmt.Sprintf("%d trailing bytes do not form a complete frame", rest)))
	}
	return nil
}

func printFrame(n int, msg awsev.Message, query *gojq.Query) {
	var hdrs []string
	for _, h := range msg.Headers {
		hdrs = append(hdrs, h.Name+"="+h.Value.String())
	}
	fmt.Printf("%s %s\n", labelStyle.Render(fmt.Sprintf("#%d", n)), dimStyle.Render(strings.Join(hdrs, " ")))

	for _, line := range renderPayload(msg.Payload, query) {
		fmt.Printf("   %s\n", line)
	}
}

// renderPayload formats a frame payload for display. JSON payloads are
// compacted (and filtered when a jq query is given); anything else is
// shown as a quoted string summary.
func renderPayload(payload []byte, query *gojq.Query) []string {
	if len(payload) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		s := strconv.Quote(string(payload))
		if len(s) > 120 {
			s = s[:120] + "..."
		}
		return []string{fmt.Sprintf("%s (%d bytes)", s, len(payload))}
	}

	if query == nil {
		out, err := json.Marshal(v)
		if err != nil {
			return []string{errStyle.Render(err.Error())}
		}
		return []string{string(out)}
	}

	var lines []string
	iter := query.Run(v)
	for {
		res, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := res.(error); isErr {
			lines = append(lines, errStyle.Render("jq: "+err.Error()))
			continue
		}
		out, err := gojq.Marshal(res)
		if err != nil {
			lines = append(lines, errStyle.Render(err.Error()))
			continue
		}
		lines = append(lines, string(out))
	}
	return lines
}

func init() {
	inspectCmd.Flags().StringVar(&inspectJQ, "jq", "", "jq expression applied to JSON payloads")
	inspectCmd.Flags().StringVar(&inspectFile, "file", "", "decode a raw wire dump instead of a session")
	rootCmd.AddCommand(inspectCmd)
}
