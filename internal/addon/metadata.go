package addon

import (
	"encoding/xml"
	"fmt"
	"os"
)

// Metadata is the structured descriptor parsed from a package.xml file.
type Metadata struct {
	XMLName     xml.Name    `xml:"package"`
	Name        string      `xml:"name"`
	Version     string      `xml:"version"`
	Description string      `xml:"description"`
	Icon        string      `xml:"icon"`
	URL         []RepoURL   `xml:"url"`
	Depends     []string    `xml:"depend"`
	Workbenches []Workbench `xml:"content>workbench"`
}

// RepoURL is a typed URL entry in a package descriptor. The "repository"
// type carries the branch the package was published from.
type RepoURL struct {
	Type   string `xml:"type,attr"`
	Branch string `xml:"branch,attr"`
	Value  string `xml:",chardata"`
}

// Workbench is a workbench declared inside a package's content block.
type Workbench struct {
	Name         string `xml:"name"`
	Icon         string `xml:"icon"`
	Subdirectory string `xml:"subdirectory"`
}

// ParseMetadata decodes package.xml bytes into a descriptor.
func ParseMetadata(data []byte) (*Metadata, error) {
	var md Metadata
	if err := xml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse package.xml: %w", err)
	}
	return &md, nil
}

// LoadMetadataFile reads and parses a package.xml from disk.
func LoadMetadataFile(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMetadata(data)
}

// RepositoryURL returns the repository-typed URL and branch from the
// descriptor, if one is declared.
func (md *Metadata) RepositoryURL() (url, branch string) {
	for _, u := range md.URL {
		if u.Type == "repository" {
			return u.Value, u.Branch
		}
	}
	return "", ""
}
