package main

import (
	"os"
	"strings"
	"time"

	"hemo-board/internal/cli"
	"hemo-board/internal/model"
)

func isDay(s string) bool {
	_, err := time.Parse(model.DayLayout, strings.TrimSpace(s))
	return err == nil
}

// rewriteWeekShortcutArgs makes `hemoboard <YYYY-MM-DD>` work like
// `hemoboard board --week <YYYY-MM-DD>`.
//
// Cobra treats the first non-flag token as a subcommand, so argv is rewritten
// before parsing. Persistent flags may come first (`hemoboard --db x 2025-03-03`),
// so the first positional token is searched for, not just argv[1].
func rewriteWeekShortcutArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--config": true,
		"--user":   true,
		"--store":  true,
		"--db":     true,
		"--format": true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
	}

	rewrite := func(i int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "board", "--week")
		out = append(out, argv[i:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}
		if isDay(a) {
			return rewrite(i)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteWeekShortcutArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
