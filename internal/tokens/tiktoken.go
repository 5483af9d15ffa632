package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE used when none is configured.
const DefaultEncoding = "cl100k_base"

// Tiktoken counts BPE tokens with an OpenAI encoding.
type Tiktoken struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding. The BPE ranks are downloaded on
// first use and cached in TIKTOKEN_CACHE_DIR (default: the system temp dir),
// so an offline host needs a pre-populated cache or the "words" counter.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("init tiktoken encoding %s (offline hosts need TIKTOKEN_CACHE_DIR populated or tokenizer type words): %w", encoding, err)
	}
	return &Tiktoken{encoding: encoding, enc: enc}, nil
}

// CountTokens returns the number of BPE tokens in text. Special-token
// strings are counted as ordinary text.
func (t *Tiktoken) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Encoding returns the encoding name.
func (t *Tiktoken) Encoding() string { return t.encoding }
