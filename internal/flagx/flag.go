// Package flagx contains helpers for parsing a subset of the command line
// without clashing with flags owned by other layers.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs keeps only the flags listed in allowedFlags, together with their
// values. Both "-c conf.json" and "-c=conf.json" forms are recognised; a
// following argument that starts with "-" is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// StringFlag returns the value of the first of names found in os.Args, the
// last occurrence winning. It returns "" when none of the names is present.
func StringFlag(usage string, names ...string) string {
	var value string

	allowed := make([]string, 0, len(names))
	fs := flag.NewFlagSet("flagx", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, name := range names {
		allowed = append(allowed, "-"+name)
		fs.StringVar(&value, name, "", usage)
	}

	_ = fs.Parse(FilterArgs(os.Args[1:], allowed))
	return value
}

// JsonConfigFlags returns the path given with -c or -config.
func JsonConfigFlags() string {
	return StringFlag("path to JSON config file", "config", "c")
}

// EnvFileFlags returns the path given with -env.
func EnvFileFlags() string {
	return StringFlag("path to .env file", "env")
}
