package deploy

import (
	"os"
	"path/filepath"

	"github.com/ambient-sdlc/control-plane/internal/sdlcerr"
)

// templateCandidates is checked in order for both the sam and
// cloudformation IaC kinds; the first that exists on disk is the template.
var templateCandidates = []string{
	"template.yaml", "template.yml",
	"cloudformation.yaml", "cloudformation.yml", "stack.yaml",
}

// readTemplate locates and reads the IaC template under root, failing with
// sdlcerr.KindPackageIntegrity if none of the candidate names is present -
// the classifier already established one of them exists, so a miss here
// means the clone changed between classify and packaging.
func readTemplate(root string) (name, body string, err error) {
	for _, candidate := range templateCandidates {
		path := filepath.Join(root, candidate)
		content, readErr := os.ReadFile(path)
		if readErr == nil {
			return candidate, string(content), nil
		}
	}
	return "", "", sdlcerr.New(sdlcerr.KindPackageIntegrity, "no template file found at packaging time")
}
