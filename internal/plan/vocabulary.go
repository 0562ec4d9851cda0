package plan

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the fixed word table the parser and the suggestion engine
// share: known file extensions and recognized filter phrases.
type Vocabulary struct {
	Extensions []string `yaml:"extensions"`
	Phrases    []string `yaml:"phrases"`

	extensionSet map[string]struct{}
}

// DefaultVocabulary returns the built-in extension and phrase tables
func DefaultVocabulary() *Vocabulary {
	v := &Vocabulary{
		Extensions: []string{
			"csv", "tsv", "txt", "md", "json", "jsonl", "ndjson", "xml", "yaml", "yml",
			"parquet", "avro", "orc", "arrow", "feather",
			"xls", "xlsx", "pdf", "doc", "docx",
			"png", "jpg", "jpeg", "gif", "tif", "tiff", "svg",
			"gz", "bz2", "zip", "tar", "zst",
			"h5", "hdf5", "npy", "npz", "pkl",
			"fastq", "fasta", "bam", "sam", "vcf", "bed",
			"log", "sql", "db", "sqlite",
		},
		Phrases: []string{
			"larger than ",
			"smaller than ",
			"created after ",
			"created before ",
			"modified since ",
			"in the last 7 days",
			"in the last 30 days",
		},
	}
	v.index()
	return v
}

// LoadVocabulary reads a YAML vocabulary file and merges it over the
// defaults. Missing file is not an error; the defaults are used.
func LoadVocabulary(path string) (*Vocabulary, error) {
	v := DefaultVocabulary()
	if path == "" {
		return v, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return v, nil
		}
		return nil, err
	}

	var extra Vocabulary
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, err
	}

	v.Extensions = append(v.Extensions, extra.Extensions...)
	v.Phrases = append(v.Phrases, extra.Phrases...)
	v.index()
	return v, nil
}

func (v *Vocabulary) index() {
	v.extensionSet = make(map[string]struct{}, len(v.Extensions))
	for _, ext := range v.Extensions {
		v.extensionSet[ext] = struct{}{}
	}
}

// KnownExtension reports whether token is a recognized file extension
// (with or without a leading dot)
func (v *Vocabulary) KnownExtension(token string) bool {
	if len(token) > 1 && token[0] == '.' {
		token = token[1:]
	}
	_, ok := v.extensionSet[token]
	return ok
}
