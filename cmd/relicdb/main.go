// Command relicdb is a small in-process SQL shell over the relicdb
// storage engine, grounded on the reference client's REPL shape minus
// its TCP client — this engine runs in the same process as the shell.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/relicdb/relicdb/internal/config"
	"github.com/relicdb/relicdb/internal/engine"
)

// History is a flat-file statement history, independent of readline's
// own in-memory ring so statements survive across invocations.
type History struct {
	path  string
	lines []string
}

func NewHistory(path string) *History { return &History{path: path} }

func (h *History) Load(max int) error {
	if h.path == "" {
		return nil
	}
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		h.lines = append(h.lines, s)
		if max > 0 && len(h.lines) > max {
			h.lines = h.lines[len(h.lines)-max:]
		}
	}
	return sc.Err()
}

func (h *History) Append(stmt string) error {
	stmt = compactOneLine(strings.TrimSpace(stmt))
	if stmt == "" || h.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, stmt); err != nil {
		return err
	}
	h.lines = append(h.lines, stmt)
	return nil
}

func compactOneLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.TrimSpace(s)

	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// statementComplete reports whether buf has a ';' terminator outside
// any quoted string.
func statementComplete(buf string) bool {
	inQuote := byte(0)
	for _, r := range buf {
		if inQuote != 0 {
			if byte(r) == inQuote {
				inQuote = 0
			}
			continue
		}
		if r == '\'' || r == '"' {
			inQuote = byte(r)
			continue
		}
		if r == ';' {
			return true
		}
	}
	return false
}

func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "\\") || line == "quit" || line == "exit"
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".relicdb_history"
	}
	return filepath.Join(home, ".relicdb_history")
}

func runScript(e *engine.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf strings.Builder
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)
		if !statementComplete(buf.String()) {
			continue
		}
		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		if stmt == "" {
			continue
		}
		if err := e.Execute(stmt, os.Stdout); err != nil {
			return err
		}
	}
	return sc.Err()
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a relicdb YAML config file")
		dataDir    = flag.String("data-dir", "", "override storage.data_dir")
		histPath   = flag.String("history", defaultHistoryPath(), "history file path")
		histMax    = flag.Int("history-max", 2000, "max history lines loaded into memory")
		oneShotSQL = flag.String("c", "", "execute one SQL statement and exit (must end with ';')")
		scriptPath = flag.String("f", "", "execute a script file of ';'-terminated statements and exit")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}

	e := engine.New(cfg.Storage.DataDir, cfg.Storage.PageSize)
	slog.Debug("relicdb.start", "dataDir", cfg.Storage.DataDir, "pageSize", cfg.Storage.PageSize)

	if strings.TrimSpace(*oneShotSQL) != "" {
		if err := e.Execute(*oneShotSQL, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *scriptPath != "" {
		if err := runScript(e, *scriptPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	h := NewHistory(*histPath)
	_ = h.Load(*histMax)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "relicdb> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	fmt.Println("type \\help for help")

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt("relicdb> ")
				continue
			}
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if isMetaCommand(line) {
			switch line {
			case "\\q", "quit", "exit":
				return
			case "\\help":
				fmt.Println(`meta commands:
  \q | quit | exit       quit
  \history                print history
  \help                   show help

sql:
  end statement with ';' (parser requires it)
  multiline is supported (shell waits until ';')`)
			case "\\history":
				for i, l := range h.lines {
					fmt.Printf("%5d  %s\n", i+1, l)
				}
			default:
				fmt.Printf("unknown command: %s\n", line)
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)

		if !statementComplete(buf.String()) {
			rl.SetPrompt("...> ")
			continue
		}

		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		rl.SetPrompt("relicdb> ")

		_ = h.Append(stmt)
		_ = rl.SaveHistory(compactOneLine(stmt))

		if err := e.Execute(stmt, os.Stdout); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}
