package wakeword

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type embeddingsJSON struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Keyword is one wake phrase with its reference embeddings.
type Keyword struct {
	Name       string
	Embeddings [][]float32
}

func LoadEmbeddings(path string) ([][]float32, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading embeddings %s: %w", path, err)
	}
	var v embeddingsJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("parsing embeddings %s: %w", path, err)
	}
	if len(v.Embeddings) == 0 {
		return nil, fmt.Errorf("embeddings %s: no reference vectors", path)
	}
	return v.Embeddings, nil
}

// LoadKeywords loads one Keyword per embeddings file, named after the file.
func LoadKeywords(paths []string) ([]Keyword, error) {
	keywords := make([]Keyword, 0, len(paths))
	for _, p := range paths {
		emb, err := LoadEmbeddings(p)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		keywords = append(keywords, Keyword{Name: name, Embeddings: emb})
	}
	return keywords, nil
}

// Score is the best similarity of vec against refs, mapped to [0, 1].
// References of a different length are skipped.
func Score(vec []float32, refs [][]float32) float32 {
	var best float32
	for _, ref := range refs {
		if len(ref) != len(vec) {
			continue
		}
		var dot float32
		for i := range vec {
			dot += vec[i] * ref[i]
		}
		if s := (dot + 1) / 2; s > best {
			best = s
		}
	}
	return best
}
