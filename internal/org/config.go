package org

// ParseConfig controls which words count as task keywords.
type ParseConfig struct {
	TodoKeywords []string `json:"todoKeywords" yaml:"todoKeywords" toml:"todoKeywords"`
	DoneKeywords []string `json:"doneKeywords" yaml:"doneKeywords" toml:"doneKeywords"`
}

// DefaultParseConfig recognizes TODO and DONE.
func DefaultParseConfig() ParseConfig {
	return ParseConfig{
		TodoKeywords: []string{"TODO"},
		DoneKeywords: []string{"DONE"},
	}
}

func (c ParseConfig) keyword(word string) (done, ok bool) {
	for _, k := range c.TodoKeywords {
		if k == word {
			return false, true
		}
	}
	for _, k := range c.DoneKeywords {
		if k == word {
			return true, true
		}
	}
	return false, false
}
