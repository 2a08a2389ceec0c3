package moderation

import (
	"bufio"
	"embed"
	"io/fs"
	"path"
	"strings"
)

//go:embed words/*.txt
var wordsFS embed.FS

// WordList aggregates the embedded censored-word files, one per language.
type WordList struct {
	Languages []string
	Words     []string
}

// LoadWords reads every embedded word file. Lines are trimmed; empty
// lines and '#' comments are skipped; duplicates across languages are
// collapsed.
func LoadWords() (WordList, error) {
	entries, err := fs.ReadDir(wordsFS, "words")
	if err != nil {
		return WordList{}, err
	}

	seen := make(map[string]struct{})
	var list WordList
	for _, entry := range entries {
		lang := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		list.Languages = append(list.Languages, lang)

		file, err := wordsFS.Open(path.Join("words", entry.Name()))
		if err != nil {
			return WordList{}, err
		}
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			list.Words = append(list.Words, word)
		}
		if err := scanner.Err(); err != nil {
			_ = file.Close()
			return WordList{}, err
		}
		_ = file.Close()
	}
	return list, nil
}
