package embedding

import "hash/fnv"

const (
	clsToken   = 101
	sepToken   = 102
	vocabSize  = 30000
	firstToken = 1000
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer maps each term to a hashed vocabulary id. It keeps the
// ONNX pipeline usable without a vocabulary file.
type SimpleTokenizer struct{}

// Tokenize returns [CLS] terms... [SEP] padded to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 2 {
		maxTokens = defaultHashingMaxTokens
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsToken
	attentionMask[0] = 1
	pos := 1
	for _, term := range Terms(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = termID(term)
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = sepToken
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

func termID(term string) int64 {
	h := fnv.New32a()
	h.Write([]byte(term))
	return firstToken + int64(h.Sum32()%(vocabSize-firstToken))
}
