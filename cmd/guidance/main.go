// Command guidance is an interactive CLI for exercising a grammar against a
// fixture vocabulary: type a grammar (in the textgrammar notation) and watch
// the constrained decoder walk it byte by byte, printing which bytes were
// forced by the grammar versus chosen by the (uniform, model-free) oracle.
//
// There is no real model behind this CLI — GetLogits always returns a flat
// distribution — so it is a sandbox for grammar authoring and decoder
// behavior, not for evaluating generation quality. See grammar/byteearley's
// tests and decode's tests for that.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pterm/pterm"

	"github.com/npillmayer/schuko/gtrace"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"

	"github.com/gfesatidis/guidance/decode"
	"github.com/gfesatidis/guidance/grammar/byteearley"
	"github.com/gfesatidis/guidance/grammar/byteearley/textgrammar"
	"github.com/gfesatidis/guidance/oracle"
	"github.com/gfesatidis/guidance/oracle/cache"
	"github.com/gfesatidis/guidance/sampler"
	"github.com/gfesatidis/guidance/trie"
)

func tracer() tracing.Trace {
	return tracing.Select("guidance.cmd")
}

func main() {
	initDisplay()
	gtrace.SyntaxTracer = gologadapter.New()
	tlevel := flag.String("trace", "Info", "Trace level [Debug|Info|Error]")
	maxTokens := flag.Int("max-tokens", 200, "Stop after this many emitted tokens")
	temperature := flag.Float64("temperature", 0, "Sampling temperature; 0 is greedy/deterministic")
	seed := flag.Uint64("seed", 1, "Seed for the multinomial sampler, ignored at temperature 0")
	initGrammar := flag.String("grammar", "", "Initial grammar source, in place of the interactive prompt")
	flag.Parse()
	tracer().SetTraceLevel(traceLevel(*tlevel))
	pterm.Info.Println("Welcome to the guidance console")
	tracer().Infof("Quit with <ctrl>D")

	vocab := byteVocabulary()

	repl, err := readline.New("grammar> ")
	if err != nil {
		tracer().Errorf(err.Error())
		os.Exit(3)
	}
	defer repl.Close()

	src := strings.TrimSpace(*initGrammar)
	if src == "" {
		line, err := repl.Readline()
		if err != nil {
			return
		}
		src = strings.TrimSpace(line)
	}
	for {
		if src == "" {
			pterm.Error.Println("empty grammar, try again")
		} else if err := runOnce(vocab, src, *maxTokens, *temperature, *seed); err != nil {
			pterm.Error.Println(err.Error())
		}
		line, err := repl.Readline()
		if err != nil {
			break
		}
		src = strings.TrimSpace(line)
	}
	pterm.Info.Println("Good bye!")
}

// runOnce compiles src and drives one decode to completion, printing each
// chunk as it is produced.
func runOnce(vocab [][]byte, src string, maxTokens int, temperature float64, seed uint64) error {
	expr, err := textgrammar.Compile(src)
	if err != nil {
		return fmt.Errorf("grammar: %w", err)
	}
	ids := make([]int32, len(vocab))
	for i := range ids {
		ids[i] = int32(i)
	}
	tr, err := trie.New(vocab, ids)
	if err != nil {
		return fmt.Errorf("trie: %w", err)
	}
	p := byteearley.New(expr)
	flat := oracle.Func(func(ctx context.Context, tokenIDs []int32) ([]float32, error) {
		logits := make([]float32, len(vocab))
		return logits, nil
	})
	// A hidden-span rewind that pops tokens re-asks the oracle for a
	// token-id prefix it has already scored; cache.Memo turns those
	// repeats into a single upstream call.
	oc := cache.New(flat)
	var samp sampler.Sampler = sampler.Temperature0{}
	if temperature > 0 {
		samp = sampler.NewMultinomial(temperature, seed)
	}
	d, err := decode.New(tr, p, oc, samp, vocab, 0, decode.WithMaxTokens(maxTokens))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	ctx := context.Background()
	for {
		chunk, more, err := d.Next(ctx)
		if err != nil {
			return err
		}
		if !more {
			break
		}
		kind := "forced"
		if chunk.IsGenerated {
			kind = "sampled"
		}
		if len(chunk.Bytes) > 0 {
			pterm.Printf("[%s] %q\n", kind, string(chunk.Bytes))
		}
		if len(chunk.Captures) > 0 {
			printCaptures(chunk.Captures)
		}
	}
	tracer().Debugf("oracle cache: hits=%d misses=%d", oc.Hits(), oc.Misses())
	return nil
}

func printCaptures(captures map[string][]byte) {
	ll := pterm.LeveledList{{Level: 0, Text: "captures"}}
	for name, val := range captures {
		ll = append(ll, pterm.LeveledListItem{Level: 1, Text: name + " = " + strconv.Quote(string(val))})
	}
	root := pterm.NewTreeFromLeveledList(ll)
	pterm.DefaultTree.WithRoot(root).Render()
}

// byteVocabulary builds a fixture vocabulary of every printable single byte
// plus common whitespace, standing in for a real model's tokenizer. It is
// enough to walk any grammar built with Lit/Class over ASCII.
func byteVocabulary() [][]byte {
	var vocab [][]byte
	for b := 0x20; b < 0x7f; b++ {
		vocab = append(vocab, []byte{byte(b)})
	}
	for _, b := range []byte{'\n', '\t'} {
		vocab = append(vocab, []byte{b})
	}
	return vocab
}

func initDisplay() {
	pterm.EnableDebugMessages()
	pterm.Info.Prefix = pterm.Prefix{
		Text:  "  >>",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "  Error",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

func traceLevel(l string) tracing.TraceLevel {
	return tracing.TraceLevelFromString(l)
}
