package inquiry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadCategories reads an FAQ table from a YAML file of the form
//
//	categories:
//	  - name: 배송
//	    keywords: [배송, 언제]
//	    response: ...
//
// Order in the file is precedence order.
func LoadCategories(path string) ([]Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "inquiry: read table %s", path)
	}

	var doc struct {
		Categories []Category `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "inquiry: parse table")
	}
	return doc.Categories, nil
}

// FromFile builds a Classifier from path, or over DefaultCategories when
// path is empty.
func FromFile(path string) (*Classifier, error) {
	if path == "" {
		return New(DefaultCategories())
	}
	cats, err := LoadCategories(path)
	if err != nil {
		return nil, err
	}
	return New(cats)
}
