package embedding

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenEstimator estimates how many tokens a provider will bill for a text.
type TokenEstimator interface {
	Estimate(text string) int
}

// HeuristicEstimator assumes roughly four characters per token.
type HeuristicEstimator struct{}

// Estimate returns ceil(runes / 4).
func (HeuristicEstimator) Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// TiktokenEstimator counts tokens with the BPE encoding of an OpenAI model.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the encoding for model, falling back to cl100k_base
// for models tiktoken does not know. Loading may download the BPE ranks.
func NewTiktokenEstimator(model string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &TiktokenEstimator{enc: enc}, nil
}

// Estimate returns the exact token count under the loaded encoding.
func (t *TiktokenEstimator) Estimate(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
