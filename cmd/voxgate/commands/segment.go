package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/voxgate/voxgate/pkg/core/segment"
)

var segmentMaxRunes int

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Split stdin text into sentence units",
	Long: `Read text from stdin and print one JSON object per sentence unit
with its rune offsets into the input.

Example:
  echo "One. Two." | voxgate segment`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSegment(cmd.InOrStdin(), cmd.OutOrStdout(), segmentMaxRunes)
	},
}

func init() {
	segmentCmd.Flags().IntVar(&segmentMaxRunes, "max-runes", 0, "force a split after this many runes (0 = default)")
}

func runSegment(in io.Reader, out io.Writer, maxRunes int) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	seg := &segment.BoundarySegmenter{MaxRunesPerUnit: maxRunes}
	w := bufio.NewWriter(out)
	defer w.Flush()

	enc := json.NewEncoder(w)
	for _, unit := range seg.Segment(string(data)) {
		if err := enc.Encode(struct {
			Text  string `json:"text"`
			Start int    `json:"start"`
			End   int    `json:"end"`
		}{unit.Text, unit.Start, unit.End}); err != nil {
			return err
		}
	}
	return nil
}
