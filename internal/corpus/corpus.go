// Package corpus loads labeled text corpora and turns them into a balanced, split and sharded
// list of training examples.
package corpus

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Separator delimits entries inside a corpus file.
const Separator = "\n\n"

// ErrEmpty is returned when a dataset cannot be built because a source or shard has no entries.
var ErrEmpty = errors.New("empty corpus")

// Entry is one text span paired with its label: true for the target author.
type Entry struct {
	Text  string
	Label bool
}

// Source is one label source: the chained entries of one or more corpus files.
type Source struct {
	Name    string
	Label   bool
	Entries []string
}

// Split cuts the contents of a corpus file into its entries, in file order. Entries are not
// trimmed, so a trailing newline stays on the last entry.
func Split(contents string) []string {
	return strings.Split(contents, Separator)
}

// ReadFile reads a corpus file and splits it into entries.
func ReadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read corpus %q", path)
	}
	return Split(string(data)), nil
}

// Load reads every file of a source in order and chains their entries.
func Load(name string, label bool, paths ...string) (*Source, error) {
	if len(paths) == 0 {
		return nil, errors.Wrapf(ErrEmpty, "source %q lists no files", name)
	}
	src := &Source{Name: name, Label: label}
	for _, path := range paths {
		entries, err := ReadFile(path)
		if err != nil {
			return nil, errors.WithMessagef(err, "source %q", name)
		}
		src.Entries = append(src.Entries, entries...)
	}
	return src, nil
}

// Balance interleaves the sources round-robin, one entry from each source per round in the given
// order, for as many rounds as the shortest source allows. The result has exactly
// len(sources) * min(len(source.Entries)) entries.
func Balance(sources []*Source) ([]Entry, error) {
	if len(sources) == 0 {
		return nil, errors.Wrap(ErrEmpty, "no sources")
	}
	rounds := len(sources[0].Entries)
	for _, src := range sources[1:] {
		rounds = min(rounds, len(src.Entries))
	}
	if rounds == 0 {
		return nil, errors.Wrap(ErrEmpty, "a source has no entries")
	}

	data := make([]Entry, 0, rounds*len(sources))
	for i := 0; i < rounds; i++ {
		for _, src := range sources {
			data = append(data, Entry{Text: src.Entries[i], Label: src.Label})
		}
	}
	return data, nil
}

// Holdout splits data into training and validation sets. The validation set is the front
// len(data)/divisor entries; the rest is for training. Both alias data.
func Holdout(data []Entry, divisor int) (train, validation []Entry) {
	if divisor <= 0 {
		return data, nil
	}
	cut := len(data) / divisor
	return data[cut:], data[:cut]
}

// Shard returns the contiguous shard index%shards of data, each len(data)/shards long. Entries
// beyond shards*(len/shards) are never part of any shard.
func Shard(data []Entry, index, shards int) []Entry {
	if shards <= 1 {
		return data
	}
	size := len(data) / shards
	start := (index % shards) * size
	return data[start : start+size]
}

// Count returns the number of entries with the given label.
func Count(data []Entry, label bool) int {
	n := 0
	for _, e := range data {
		if e.Label == label {
			n++
		}
	}
	return n
}
