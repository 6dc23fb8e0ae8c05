// Command wasmvm runs a single exported function from a Wasm binary and
// prints its result, or an error if loading, resolving, or executing the
// function fails.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tinywasm/tinywasm"
	"github.com/tinywasm/tinywasm/api"
)

func main() {
	os.Exit(doMain(os.Stdout, os.Stderr, os.Args[1:]))
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer, args []string) int {
	flags := flag.NewFlagSet("wasmvm", flag.ContinueOnError)
	flags.SetOutput(stdErr)

	var backendName string
	flags.StringVar(&backendName, "backend", "threaded", "execution back-end: threaded or closure")

	if err := flags.Parse(args); err != nil {
		return 1
	}

	rest := flags.Args()
	if len(rest) < 2 {
		printUsage(stdErr)
		return 1
	}
	path, export := rest[0], rest[1]

	backend, err := parseBackend(backendName)
	if err != nil {
		fmt.Fprintln(stdErr, err)
		return 1
	}

	params, err := parseParams(rest[2:])
	if err != nil {
		fmt.Fprintln(stdErr, err)
		return 1
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdErr, "failed to read %s: %v\n", path, err)
		return 1
	}

	vm := tinywasm.NewWithBackend(backend)
	if err := vm.LoadFile("main", data); err != nil {
		fmt.Fprintln(stdErr, err)
		return 1
	}

	instance := vm.Spawn()
	ret, err := instance.Call("main", export, params)
	if err != nil {
		fmt.Fprintln(stdErr, err)
		return 1
	}
	if ret == nil {
		fmt.Fprintln(stdOut, "ret = <no return value>")
		return 0
	}
	fmt.Fprintln(stdOut, formatValue(*ret))
	return 0
}

func parseBackend(name string) (tinywasm.Backend, error) {
	switch name {
	case "threaded":
		return tinywasm.BackendThreaded, nil
	case "closure":
		return tinywasm.BackendClosure, nil
	default:
		return 0, fmt.Errorf("unknown backend %q: want threaded or closure", name)
	}
}

// parseParams converts each positional argument to an i64 Value. Unlike the
// reference implementation's silent fallback to 0 on a malformed argument,
// a parse failure here is promoted to an error: a CLI that silently runs a
// different program than the one the caller typed is a worse failure mode
// than a caller who sees why their invocation was rejected.
func parseParams(args []string) ([]api.Value, error) {
	params := make([]api.Value, len(args))
	for i, a := range args {
		v, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse argument %d (%q) as i64: %w", i, a, err)
		}
		params[i] = api.I64Value(v)
	}
	return params, nil
}

func formatValue(v api.Value) string {
	switch v.Type {
	case api.ValueTypeI32:
		return strconv.FormatInt(int64(v.I32()), 10)
	case api.ValueTypeI64:
		return strconv.FormatInt(v.I64(), 10)
	case api.ValueTypeF32:
		return strconv.FormatFloat(float64(v.F32()), 'g', -1, 32)
	case api.ValueTypeF64:
		return strconv.FormatFloat(v.F64(), 'g', -1, 64)
	default:
		return "<unknown>"
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: wasmvm [-backend threaded|closure] <path-to-wasm> <export-name> [i64-args...]")
}
