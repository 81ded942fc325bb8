package kb

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"trustmed/internal/manifest"
)

// NoSnippet is shown when a retrieved reference carries no text.
const NoSnippet = "No snippet available."

// Citation is one numbered source backing an answer.
type Citation struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	Snippet  string `json:"snippet"`
	Location string `json:"location,omitempty"`
}

// Name is the label of the snippet element for this citation.
func (c Citation) Name() string {
	return fmt.Sprintf("Source %d", c.Index)
}

// Link renders the citation as a markdown link, or the bare title when
// there is nowhere to link to.
func (c Citation) Link() string {
	if c.URL == "" {
		return c.Title
	}

	return fmt.Sprintf("[%s](%s)", c.Title, c.URL)
}

// ResolveCitations flattens every retrieved reference of every citation into
// numbered sources, naming them through the manifest when possible.
func ResolveCitations(citations []types.Citation, index *manifest.Index) []Citation {
	var out []Citation

	for _, c := range citations {
		for _, ref := range c.RetrievedReferences {
			n := len(out) + 1
			out = append(out, resolveReference(n, ref, index))
		}
	}

	return out
}

func resolveReference(n int, ref types.RetrievedReference, index *manifest.Index) Citation {
	snippet := NoSnippet
	if ref.Content != nil {
		if text := strings.TrimSpace(aws.ToString(ref.Content.Text)); text != "" {
			snippet = text
		}
	}

	location := referenceLocation(ref.Location)

	title := fmt.Sprintf("source_%d", n)
	if location != "" {
		title = manifest.BaseName(location)
	}

	link := location

	if strings.HasPrefix(location, "s3://") {
		if entry, ok := index.Lookup(location); ok {
			if entry.Title != "" {
				title = entry.Title
			}

			if entry.CanonicalURL != "" {
				link = entry.CanonicalURL
			}
		}
	}

	return Citation{
		Index:    n,
		Title:    title,
		URL:      link,
		Snippet:  snippet,
		Location: location,
	}
}

func referenceLocation(loc *types.RetrievalResultLocation) string {
	if loc == nil {
		return ""
	}

	if loc.S3Location != nil && loc.S3Location.Uri != nil {
		return aws.ToString(loc.S3Location.Uri)
	}

	if loc.WebLocation != nil && loc.WebLocation.Url != nil {
		return aws.ToString(loc.WebLocation.Url)
	}

	return ""
}

// FormatSources renders the markdown block appended to an answer. It is
// empty when there are no citations.
func FormatSources(citations []Citation) string {
	if len(citations) == 0 {
		return ""
	}

	lines := make([]string, 0, len(citations))
	for _, c := range citations {
		lines = append(lines, fmt.Sprintf("%d. %s", c.Index, c.Link()))
	}

	return "\n\n**Sources:**\n" + strings.Join(lines, "\n")
}
