package source

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/kestrelcad/addons/internal/addon"
)

// ProcessMetadataTxt fills an addon's dependency sets from the legacy
// metadata.txt format: key=value lines with comma-separated values, where
// workbenches lists required workbenches, pylibs required python modules
// and optionalpylibs optional python modules. Unknown keys are ignored.
func ProcessMetadataTxt(a *addon.Addon, data []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		key, rest, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		var add func(...string)
		switch strings.TrimSpace(strings.ToLower(key)) {
		case "workbenches":
			add = a.AddRequires
		case "pylibs":
			add = a.AddPythonRequires
		case "optionalpylibs":
			add = a.AddPythonOptional
		default:
			continue
		}
		for _, item := range strings.Split(rest, ",") {
			if item = strings.TrimSpace(item); item != "" {
				add(item)
			}
		}
	}
}

// requirementTerminators end the package-name portion of a requirements.txt
// line: version constraints, comments and local path operators.
const requirementTerminators = " <>=~!+#"

// ProcessRequirementsTxt fills an addon's required python modules from a
// pip-style requirements.txt, keeping only the bare package name of each
// line.
func ProcessRequirementsTxt(a *addon.Addon, data []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexAny(line, requirementTerminators); idx >= 0 {
			line = line[:idx]
		}
		if line = strings.TrimSpace(line); line != "" {
			a.AddPythonRequires(line)
		}
	}
}
