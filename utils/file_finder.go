package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolvedFile is a file name found in one of the search directories
type ResolvedFile struct {
	Name string
	Dir  string
}

// Path returns the joined directory and name
func (rf ResolvedFile) Path() string {
	return filepath.Join(rf.Dir, rf.Name)
}

// SplitList splits a whitespace separated list, as make passes VPATH and
// file lists on the command line
func SplitList(s string) []string {
	return strings.Fields(s)
}

// FindFiles locates each name in the first directory of vpath that holds a
// regular file of that name. An empty vpath searches the current directory.
// Names that cannot be found are returned in missing, in input order.
func FindFiles(vpath []string, names []string) (found []ResolvedFile, missing []string) {
	if len(vpath) == 0 {
		vpath = []string{"."}
	}

	for _, name := range names {
		resolved := false
		for _, dir := range vpath {
			info, err := os.Stat(filepath.Join(dir, name))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			found = append(found, ResolvedFile{Name: name, Dir: dir})
			resolved = true
			break
		}
		if !resolved {
			missing = append(missing, name)
		}
	}

	return found, missing
}
