package engine

import (
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"github.com/mpecan/tokf-sub001/internal/filter"
)

// ResolvePre returns the name of the first variant whose detect files exist
// in dir. It runs before the command does.
func ResolvePre(f *filter.Filter, dir string) (string, bool) {
	for _, v := range f.Variant {
		for _, name := range v.Detect.Files {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return v.Filter, true
			}
		}
	}
	return "", false
}

// ResolvePost returns the name of the first variant whose output pattern
// matches the command's output. Invalid patterns never match.
func ResolvePost(f *filter.Filter, output string, log *zap.Logger) (string, bool) {
	for _, v := range f.Variant {
		if v.Detect.OutputPattern == "" {
			continue
		}
		re, err := regexp.Compile(v.Detect.OutputPattern)
		if err != nil {
			if log != nil {
				log.Debug("inert variant pattern",
					zap.String("variant", v.Name),
					zap.String("pattern", v.Detect.OutputPattern),
					zap.Error(err))
			}
			continue
		}
		if re.MatchString(output) {
			return v.Filter, true
		}
	}
	return "", false
}
