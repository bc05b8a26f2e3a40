package batch

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/StudioSol/set"
	"github.com/tidwall/gjson"
)

// DateLayout is the layout of the batch file keys
const DateLayout = "2006-01-02"

var ErrInvalidInput = errors.New("invalid batch input")

// Entry is one (date, symbol) row of the batch input
type Entry struct {
	Date   time.Time
	Symbol string
}

// Key is the entry date as written in the input
func (e Entry) Key() string { return e.Date.Format(DateLayout) }

// LoadEntries reads a batch file, see ParseEntries
func LoadEntries(path string, loc *time.Location) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseEntries(data, loc)
}

// ParseEntries reads a JSON object mapping dates to symbols, keeping the file
// order. A repeated date keeps its first position and its last symbol.
func ParseEntries(data []byte, loc *time.Location) ([]Entry, error) {
	if loc == nil {
		loc = time.UTC
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidInput)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected an object of date to symbol", ErrInvalidInput)
	}

	order := set.NewLinkedHashSetString()
	symbols := make(map[string]string)

	var parseErr error
	root.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String || strings.TrimSpace(value.Str) == "" {
			parseErr = fmt.Errorf("%w: %q must map to a symbol", ErrInvalidInput, key.String())
			return false
		}
		if _, err := time.ParseInLocation(DateLayout, key.String(), loc); err != nil {
			parseErr = fmt.Errorf("%w: bad date %q", ErrInvalidInput, key.String())
			return false
		}

		order.Add(key.String())
		symbols[key.String()] = strings.ToUpper(strings.TrimSpace(value.Str))
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	entries := make([]Entry, 0, len(symbols))
	for key := range order.Iter() {
		date, _ := time.ParseInLocation(DateLayout, key, loc)
		entries = append(entries, Entry{Date: date, Symbol: symbols[key]})
	}

	return entries, nil
}

// Symbols returns the distinct symbols of entries in first-seen order
func Symbols(entries []Entry) []string {
	distinct := set.NewLinkedHashSetString()
	for _, entry := range entries {
		distinct.Add(entry.Symbol)
	}

	symbols := make([]string, 0)
	for symbol := range distinct.Iter() {
		symbols = append(symbols, symbol)
	}
	return symbols
}
