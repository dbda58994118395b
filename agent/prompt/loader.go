package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/querygen.txt
	querygenRaw string

	//go:embed template/synthesizer.txt
	synthesizerRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	System      string
	QueryGen    string
	Synthesizer string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		System:      strings.TrimSpace(systemRaw),
		QueryGen:    strings.TrimSpace(querygenRaw),
		Synthesizer: strings.TrimSpace(synthesizerRaw),
	}
}
