package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ArgError struct {
	Arg   string
	Cause string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

// ParseArgs validates the CLI arguments and returns the path of the
// CSV file to analyze.
func ParseArgs(args []string) (string, error) {
	if len(args) == 0 {
		return "", &ArgError{Arg: "<file.csv>", Cause: "no file provided"}
	}
	if len(args) > 1 {
		return "", &ArgError{Arg: args[1], Cause: "expected exactly one file"}
	}

	p := filepath.Clean(args[0])
	info, err := os.Stat(p)
	if err != nil {
		return "", &ArgError{Arg: args[0], Cause: "not found or not accessible"}
	}
	if info.IsDir() {
		return "", &ArgError{Arg: args[0], Cause: "is a directory, expected a CSV file"}
	}
	if !strings.EqualFold(filepath.Ext(p), ".csv") {
		return "", &ArgError{Arg: args[0], Cause: "expected a .csv file"}
	}

	return p, nil
}
