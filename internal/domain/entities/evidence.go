package entities

// EvidenceSource names the retrieval channel an item came from.
type EvidenceSource string

const (
	EvidenceSourceWeb       EvidenceSource = "web"
	EvidenceSourceSocial    EvidenceSource = "social"
	EvidenceSourceAuthentic EvidenceSource = "authentic"
)

// EvidenceItem is one external search result offered to the model as grounding.
type EvidenceItem struct {
	Title         string         `json:"title"`
	URL           string         `json:"url"`
	Content       string         `json:"content"`
	Score         float64        `json:"score,omitempty"`
	PublishedDate string         `json:"published_date,omitempty"`
	Source        EvidenceSource `json:"source"`
}
