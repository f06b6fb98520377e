/*
 * rv32im - Main process.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rcornwell/rv32im/internal/bus"
	"github.com/rcornwell/rv32im/internal/clint"
	"github.com/rcornwell/rv32im/internal/hart"
	"github.com/rcornwell/rv32im/internal/loader"
	"github.com/rcornwell/rv32im/internal/memory"
	"github.com/rcornwell/rv32im/internal/uart"
	logger "github.com/rcornwell/rv32im/util/logger"
)

const terminalMirrorPath = "terminal.out"

func main() {
	optLogFile := getopt.StringLong("log", 'l', "", "Log file for host diagnostics")
	optDebug := getopt.BoolLong("debug", 'd', "Also mirror debug-level log output to stderr")
	optMtimecmp := getopt.StringLong("mtimecmp", 'm', "", "Seed value for mtimecmp (decimal, or hex with 0x prefix)")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	args := getopt.Args()
	if len(args) < 2 {
		getopt.Usage()
		os.Exit(1)
	}
	programPath, tracePath := args[0], args[1]
	var inputPath string
	if len(args) > 2 {
		inputPath = args[2]
	}

	var logWriter io.Writer
	if *optLogFile != "" {
		logFile, err := os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "rv32im: cannot create log file:", err)
			os.Exit(1)
		}
		defer logFile.Close()
		logWriter = logFile
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	log := slog.New(logger.NewHandler(logWriter, &slog.HandlerOptions{Level: programLevel}, optDebug))
	slog.SetDefault(log)

	log.Info("rv32im started", "program", programPath, "trace", tracePath)

	programFile, err := os.Open(programPath)
	if err != nil {
		log.Error("cannot open program image", "path", programPath, "error", err)
		os.Exit(1)
	}
	defer programFile.Close()

	traceFile, err := os.Create(tracePath)
	if err != nil {
		log.Error("cannot create trace file", "path", tracePath, "error", err)
		os.Exit(1)
	}
	defer traceFile.Close()

	var input io.Reader = os.Stdin
	if inputPath != "" {
		inputFile, err := os.Open(inputPath)
		if err != nil {
			log.Error("cannot open input file", "path", inputPath, "error", err)
			os.Exit(1)
		}
		defer inputFile.Close()
		input = inputFile
	}

	terminalMirror, err := os.Create(terminalMirrorPath)
	if err != nil {
		log.Error("cannot create terminal mirror", "path", terminalMirrorPath, "error", err)
		os.Exit(1)
	}
	defer terminalMirror.Close()

	mem := memory.New()
	if err := loader.Load(programFile, mem, log); err != nil {
		log.Error("program load failed", "error", err)
		os.Exit(1)
	}

	c := clint.New()
	if optMtimecmp != nil && *optMtimecmp != "" {
		seed, err := strconv.ParseUint(*optMtimecmp, 0, 64)
		if err != nil {
			log.Error("invalid --mtimecmp value", "value", *optMtimecmp, "error", err)
			os.Exit(1)
		}
		c.SeedMtimecmp(seed)
	}
	u := uart.New(input, io.MultiWriter(os.Stdout, terminalMirror))
	b := bus.New(mem, c, u)
	h := hart.New(b, c)

	retired := 0
	for {
		line, halt := h.Step()
		if line != "" {
			fmt.Fprintln(traceFile, line)
		}
		retired++
		if halt {
			break
		}
	}

	log.Info("rv32im halted", "pc", fmt.Sprintf("0x%x", h.PC), "retired", retired)
}
