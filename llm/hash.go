package llm

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/hubenschmidt/go-semcat/vector"
)

// ErrNoFeatures is returned for blank text.
var ErrNoFeatures = errors.New("text has no embeddable features")

// HashEmbedder is a deterministic feature-hashing embedder. Words and
// character trigrams are hashed into a fixed number of buckets with a
// signed count, then the vector is L2-normalised. It needs no network and
// places texts that share words or spelling close together.
type HashEmbedder struct {
	dimension int
}

const DefaultHashDimension = 256

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{dimension: dimension}
}

func (h *HashEmbedder) Dimension() int {
	return h.dimension
}

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	vec := make([]float64, h.dimension)
	if len(words) > 0 {
		for _, w := range words {
			h.add(vec, "w:"+w, 1.0)
			h.addTrigrams(vec, w)
		}
	} else {
		// Symbols and emoji only: hash the runes themselves.
		symbols := strings.Join(strings.Fields(lower), " ")
		if symbols == "" {
			return nil, ErrNoFeatures
		}
		for _, r := range symbols {
			if !unicode.IsSpace(r) {
				h.add(vec, "r:"+string(r), 1.0)
			}
		}
		h.addTrigrams(vec, symbols)
	}

	for _, v := range vec {
		if v != 0 {
			return vector.Normalize(vec), nil
		}
	}
	// Every feature cancelled out.
	return nil, ErrNoFeatures
}

func (h *HashEmbedder) addTrigrams(vec []float64, s string) {
	padded := []rune("#" + s + "#")
	for i := 0; i+3 <= len(padded); i++ {
		h.add(vec, "g:"+string(padded[i:i+3]), 0.5)
	}
}

func (h *HashEmbedder) add(vec []float64, feature string, weight float64) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	bucket := int(sum % uint64(h.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}
