// Package intent maps one line of user text onto a fixed mutation intent.
// There is no scoring or disambiguation: matchers run in a fixed priority
// order (add, edit, search, delete) and the first hit wins.
package intent

import (
	"regexp"
	"strings"
)

// Kind is the closed set of recognized intents.
type Kind string

const (
	Add     Kind = "add"
	Edit    Kind = "edit"
	Search  Kind = "search"
	Delete  Kind = "delete"
	Unknown Kind = "unknown"
)

// Intent is the classified purpose of an utterance plus whatever entities the
// matching pattern captured. Missing entities are empty strings, never errors.
type Intent struct {
	Kind         Kind
	NDC          string // edit/delete target code
	Name         string // add: candidate product name
	Manufacturer string // add: candidate manufacturer
	SearchTerm   string // search: free-text term, empty means "list all"
}

// HelpMessage is the reply for unrecognized input. Unknown is the default
// conversational response, not an error.
const HelpMessage = "I'm not sure what you want to do with SKUs. You can say things like " +
	"'add a new SKU', 'edit SKU 12345-678-90', 'search for ibuprofen', or 'delete SKU 12345-678-90'."

var (
	addPattern    = regexp.MustCompile(`(?i)(add|create|new) (a |new |)sku`)
	editPattern   = regexp.MustCompile(`(?i)(edit|update|modify|change) (sku|drug) ([A-Za-z0-9\-]+)`)
	searchPattern = regexp.MustCompile(`(?i)(search|find|get|list)( for| all)?( skus?| drugs?)?( with| containing| named| like)?[ ]?([a-z0-9 ]+)?`)
	deletePattern = regexp.MustCompile(`(?i)(delete|remove) (sku|drug) ([A-Za-z0-9\-]+)`)

	// searchGate decides whether the utterance is about SKUs at all before
	// the broad searchPattern extracts a term.
	searchGate = regexp.MustCompile(`(?i)(search|find|get|list) (for |)(all |)((sku|drug)s|sku|drug)`)

	// add entities: product name after "for", optional manufacturer after
	// "by"/"from".
	addEntityPattern = regexp.MustCompile(`(?i)for ([a-z0-9 ]+?)( by | from )([a-z0-9 ]+)`)
	addNamePattern   = regexp.MustCompile(`(?i)for ([a-z0-9 ]+)`)
)

// matchers pair a recognizer with its entity constructor, in priority order.
var matchers = []struct {
	match func(string) bool
	build func(string) Intent
}{
	{addPattern.MatchString, buildAdd},
	{editPattern.MatchString, buildEdit},
	{searchGate.MatchString, buildSearch},
	{deletePattern.MatchString, buildDelete},
}

// Classify returns exactly one Intent for the given raw text.
func Classify(text string) Intent {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	for _, m := range matchers {
		if m.match(cleaned) {
			return m.build(cleaned)
		}
	}
	return Intent{Kind: Unknown}
}

func buildAdd(text string) Intent {
	it := Intent{Kind: Add}
	if m := addEntityPattern.FindStringSubmatch(text); m != nil {
		it.Name = strings.TrimSpace(m[1])
		it.Manufacturer = strings.TrimSpace(m[3])
		return it
	}
	if m := addNamePattern.FindStringSubmatch(text); m != nil {
		it.Name = strings.TrimSpace(m[1])
	}
	return it
}

func buildEdit(text string) Intent {
	it := Intent{Kind: Edit}
	if m := editPattern.FindStringSubmatch(text); m != nil {
		it.NDC = m[3]
	}
	return it
}

func buildSearch(text string) Intent {
	it := Intent{Kind: Search}
	if m := searchPattern.FindStringSubmatch(text); m != nil && m[5] != "" {
		term := strings.TrimSpace(m[5])
		// The broad capture often swallows the "skus"/"drugs" noun itself;
		// that means no term was given.
		switch term {
		case "sku", "skus", "drug", "drugs", "all", "all skus", "all drugs":
			term = ""
		}
		it.SearchTerm = term
	}
	return it
}

func buildDelete(text string) Intent {
	it := Intent{Kind: Delete}
	if m := deletePattern.FindStringSubmatch(text); m != nil {
		it.NDC = m[3]
	}
	return it
}
