package config

// FlagOverride scans args (typically os.Args[1:]) for "--name value" or
// "--name=value" and returns the value, mirroring the teacher's
// ArgumentResolver scan of "--config"/"--config=" without pulling in a full
// flag-parsing package just for this one lookup.
func FlagOverride(args []string, name string) string {
	prefix := "--" + name
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == prefix && i+1 < len(args) {
			return args[i+1]
		}
		if len(arg) > len(prefix)+1 && arg[:len(prefix)+1] == prefix+"=" {
			return arg[len(prefix)+1:]
		}
	}
	return ""
}
