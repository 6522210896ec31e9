package cli

import "strings"

// RunFlags holds the flags of the run command. They are only recognized
// before the wrapped command, so the command's own flags pass through.
type RunFlags struct {
	Verbose int
	Raw     bool
	Color   bool
	NoTrack bool
	Help    bool
}

// ParseRunFlags extracts leading run flags from args and returns the
// command line that follows them. "--" ends flag parsing explicitly.
func ParseRunFlags(args []string) (RunFlags, []string) {
	var flags RunFlags

	for i, arg := range args {
		switch {
		case arg == "--":
			return flags, args[i+1:]
		case arg == "-v" || arg == "--verbose":
			flags.Verbose++
		case arg == "--raw":
			flags.Raw = true
		case arg == "--color":
			flags.Color = true
		case arg == "--no-track":
			flags.NoTrack = true
		case arg == "--help" || arg == "-h":
			flags.Help = true
		case isStackedVerboseFlag(arg):
			flags.Verbose += strings.Count(arg, "v")
		default:
			return flags, args[i:]
		}
	}
	return flags, nil
}

// isStackedVerboseFlag detects flags like -vv, -vvv (only 'v' chars after one dash).
func isStackedVerboseFlag(arg string) bool {
	if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
		return false
	}
	trimmed := strings.TrimPrefix(arg, "-")
	return len(trimmed) > 0 && strings.Trim(trimmed, "v") == ""
}
