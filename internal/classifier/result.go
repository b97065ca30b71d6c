package classifier

// Request is the wire format sent to the moderation endpoint.
type Request struct {
	Input     string  `json:"input"`
	Model     string  `json:"model"`
	Threshold float64 `json:"threshold"`
}

// Response mirrors the moderation endpoint's reply. A response carries
// one result per input; this client always sends a single input.
type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Results []Result `json:"results"`
	Warning string   `json:"warning,omitempty"`
}

type Result struct {
	Flagged        bool               `json:"flagged"`
	Categories     map[string]bool    `json:"categories"`
	CategoryScores map[string]float64 `json:"category_scores"`
	Error          string             `json:"error,omitempty"`
}

func (r *Result) HasError() bool {
	return r != nil && r.Error != ""
}

// HighestCategory returns the category with the largest score, or
// "unknown" when no scores are present.
func (r *Result) HighestCategory() string {
	highest := "unknown"
	highestScore := 0.0
	for category, score := range r.CategoryScores {
		if score > highestScore {
			highestScore = score
			highest = category
		}
	}
	return highest
}

func (r *Result) HighestScore() float64 {
	highest := 0.0
	for _, score := range r.CategoryScores {
		if score > highest {
			highest = score
		}
	}
	return highest
}

func (r *Result) FlaggedCategories() []string {
	var flagged []string
	for category, isFlagged := range r.Categories {
		if isFlagged {
			flagged = append(flagged, category)
		}
	}
	return flagged
}
