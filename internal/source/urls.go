package source

import (
	"fmt"
	"strings"
)

// CleanGitURL normalizes a repository URL and derives an addon name from it.
// Trailing slashes and a .git suffix are stripped; the name is the last path
// segment of the cleaned URL. The operation is idempotent.
func CleanGitURL(rawURL string) (cleanURL, name string) {
	cleanURL = strings.TrimSuffix(rawURL, "/")
	cleanURL = strings.TrimSuffix(cleanURL, ".git")
	if idx := strings.LastIndex(cleanURL, "/"); idx >= 0 {
		name = cleanURL[idx+1:]
	} else {
		name = cleanURL
	}
	return cleanURL, name
}

// RawFileURL builds the URL of a single file inside a hosted repository.
// GitHub exposes raw files under /raw/<branch>/, the GitLab family under
// /-/raw/<branch>/. Unrecognized hosts get the GitLab form since most
// self-hosted forges run GitLab. file:// URLs address a local checkout, so
// the branch does not apply.
func RawFileURL(repoURL, branch, file string) string {
	switch {
	case strings.HasPrefix(repoURL, "file://"):
		return fmt.Sprintf("%s/%s", repoURL, file)
	case strings.Contains(repoURL, "github.com"):
		return fmt.Sprintf("%s/raw/%s/%s", repoURL, branch, file)
	default:
		// gitlab.com, framagit.org, salsa.debian.org and unknown hosts
		return fmt.Sprintf("%s/-/raw/%s/%s", repoURL, branch, file)
	}
}

// SnapshotZipURL builds the URL of a zip snapshot of a repository branch.
func SnapshotZipURL(repoURL, branch, name string) string {
	if strings.Contains(repoURL, "github.com") {
		return fmt.Sprintf("%s/archive/%s.zip", repoURL, branch)
	}
	return fmt.Sprintf("%s/-/archive/%s/%s-%s.zip", repoURL, branch, name, branch)
}
