package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/nlpforge/bpetrain/logutil"
)

var (
	// Set via BPETRAIN_DEBUG in the environment
	Debug bool
	// Set via BPETRAIN_TRACE in the environment
	Trace bool
	// Set via BPETRAIN_NUM_WORKERS in the environment
	NumWorkers int
	// Set via BPETRAIN_CHUNK_WINDOW in the environment
	ChunkWindow int
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"BPETRAIN_DEBUG":        {"BPETRAIN_DEBUG", Debug, "Show additional debug information (e.g. BPETRAIN_DEBUG=1)"},
		"BPETRAIN_TRACE":        {"BPETRAIN_TRACE", Trace, "Log every merge step (very verbose)"},
		"BPETRAIN_NUM_WORKERS":  {"BPETRAIN_NUM_WORKERS", NumWorkers, "Default number of parallel tokenizer workers (default: number of CPUs)"},
		"BPETRAIN_CHUNK_WINDOW": {"BPETRAIN_CHUNK_WINDOW", ChunkWindow, "Read window in bytes for the chunk boundary search (default 4096)"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// LogLevel returns the slog level implied by BPETRAIN_DEBUG / BPETRAIN_TRACE.
func LogLevel() slog.Level {
	switch {
	case Trace:
		return logutil.LevelTrace
	case Debug:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	// default values
	NumWorkers = runtime.NumCPU()
	ChunkWindow = 4096

	if debug := clean("BPETRAIN_DEBUG"); debug != "" {
		d, err := strconv.ParseBool(debug)
		if err == nil {
			Debug = d
		} else {
			Debug = true
		}
	}

	if trace := clean("BPETRAIN_TRACE"); trace != "" {
		t, err := strconv.ParseBool(trace)
		if err == nil {
			Trace = t
		} else {
			Trace = true
		}
	}

	if workers := clean("BPETRAIN_NUM_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			NumWorkers = n
		} else {
			slog.Error("invalid setting", "BPETRAIN_NUM_WORKERS", workers)
		}
	}

	if window := clean("BPETRAIN_CHUNK_WINDOW"); window != "" {
		if n, err := strconv.Atoi(window); err == nil && n > 0 {
			ChunkWindow = n
		} else {
			slog.Error("invalid setting", "BPETRAIN_CHUNK_WINDOW", window)
		}
	}
}
