package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nlpforge/bpetrain/envconfig"
	"github.com/nlpforge/bpetrain/format"
	"github.com/nlpforge/bpetrain/trainer"
	"github.com/nlpforge/bpetrain/version"
)

func NewTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train CORPUS",
		Short: "Train a BPE vocabulary from a corpus file",
		Args:  cobra.ExactArgs(1),
		RunE:  trainHandler,
	}

	cmd.Flags().Int("vocab-size", 4096, "Target vocabulary size")
	cmd.Flags().StringArray("special", []string{"<|endoftext|>"}, "Special token, atomic and usable as a chunk separator (repeatable)")
	cmd.Flags().Int("workers", envconfig.NumWorkers, "Number of parallel tokenizer workers")
	cmd.Flags().String("output", "", "Write the trained vocabulary and merges to this JSON file")

	return cmd
}

func trainHandler(cmd *cobra.Command, args []string) error {
	vocabSize, _ := cmd.Flags().GetInt("vocab-size")
	specials, _ := cmd.Flags().GetStringArray("special")
	workers, _ := cmd.Flags().GetInt("workers")
	output, _ := cmd.Flags().GetString("output")

	fi, err := os.Stat(args[0])
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := trainer.TrainFile(cmd.Context(), args[0], trainer.Options{
		VocabSize:     vocabSize,
		SpecialTokens: specials,
		NumWorkers:    workers,
		ChunkWindow:   envconfig.ChunkWindow,
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if output != "" {
		if err := writeModel(output, specials, result); err != nil {
			return err
		}
	}

	base := 256 + len(specials)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeaderLine(false)
		table.SetBorder(false)
		table.SetNoWhiteSpace(true)
		table.SetTablePadding("    ")
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.AppendBulk([][]string{
			{"corpus", fmt.Sprintf("%s (%s)", args[0], format.HumanBytes(fi.Size()))},
			{"base vocab", format.HumanNumber(uint64(base))},
			{"merges", format.HumanNumber(uint64(len(result.Merges)))},
			{"final vocab", format.HumanNumber(uint64(result.Vocab.Len()))},
			{"tokens", format.HumanNumber(uint64(result.TokenCount))},
			{"elapsed", elapsed.Round(time.Millisecond).String()},
		})
		table.Render()
	} else {
		fmt.Fprintf(os.Stdout, "corpus=%s bytes=%d base=%d merges=%d vocab=%d tokens=%d elapsed=%s\n",
			args[0], fi.Size(), base, len(result.Merges), result.Vocab.Len(), result.TokenCount, elapsed.Round(time.Millisecond))
	}

	return nil
}

// trainedModel is the CLI convenience dump; the trainer itself defines no
// persistence format. Byte sequences marshal as base64.
type trainedModel struct {
	Version       string      `json:"version"`
	SpecialTokens []string    `json:"special_tokens"`
	Vocab         [][]byte    `json:"vocab"`
	Merges        [][2][]byte `json:"merges"`
}

func writeModel(path string, specials []string, result *trainer.Result) error {
	model := trainedModel{
		Version:       version.Version,
		SpecialTokens: specials,
		Vocab:         make([][]byte, result.Vocab.Len()),
		Merges:        make([][2][]byte, len(result.Merges)),
	}

	for id := range model.Vocab {
		model.Vocab[id] = result.Vocab.Bytes(id)
	}

	for i, m := range result.Merges {
		model.Merges[i] = [2][]byte{m.Left, m.Right}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(model); err != nil {
		f.Close()
		return fmt.Errorf("encode output: %w", err)
	}

	return f.Close()
}
