package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"skucatalog/pkg/domain"
	"skucatalog/pkg/intent"
	"skucatalog/services/assistant/internal/catalogclient"
)

// failureReply is the generic upstream-failure message. Raw transport errors
// never reach the user.
const failureReply = "Sorry, I couldn't reach the catalog right now. Please try again."

// maxListedMatches caps how many candidates a reply enumerates.
const maxListedMatches = 5

// maxDuplicateProbes caps the "did you mean" candidates for an add intent.
const maxDuplicateProbes = 3

// ChatResponse is one dialogue turn's outcome.
type ChatResponse struct {
	Reply                string               `json:"reply"`
	Intent               string               `json:"intent"`
	Action               string               `json:"action,omitempty"`
	SKUDetails           *domain.SKU          `json:"skuDetails,omitempty"`
	Matches              []domain.SKU         `json:"matches,omitempty"`
	Total                int                  `json:"total,omitempty"`
	ConfirmationRequired bool                 `json:"confirmationRequired,omitempty"`
	ConfirmationType     string               `json:"confirmationType,omitempty"`
	Changes              []domain.FieldChange `json:"changes,omitempty"`
}

// ProcessMessage consumes one line of user text and produces the reply plus
// any confirmation-gated action. The controller is stateless across turns
// except through the session context and the engine's notification list.
func (a *App) ProcessMessage(ctx context.Context, text string) ChatResponse {
	a.contexts.AddMessage(true, text, nil)

	it := intent.Classify(text)
	var resp ChatResponse
	switch it.Kind {
	case intent.Add:
		resp = a.handleAdd(ctx, it)
	case intent.Edit:
		resp = a.handleEdit(ctx, it)
	case intent.Search:
		resp = a.handleSearch(ctx, it)
	case intent.Delete:
		resp = a.handleDelete(ctx, it)
	default:
		resp = ChatResponse{Reply: intent.HelpMessage}
	}
	resp.Intent = string(it.Kind)

	a.contexts.AddMessage(false, resp.Reply, nil)
	return resp
}

// handleAdd offers the add form. When the utterance names a product that
// already exists, the controller probes for duplicates first instead of
// silently creating a second record.
func (a *App) handleAdd(ctx context.Context, it intent.Intent) ChatResponse {
	if it.Name != "" {
		items, _, err := a.catalog.List(ctx, catalogclient.ListFilter{Name: it.Name, PageSize: maxDuplicateProbes})
		if err != nil {
			slog.Warn("duplicate probe failed", "err", err)
			return ChatResponse{Reply: failureReply}
		}
		if len(items) > 0 {
			return ChatResponse{
				Reply:   fmt.Sprintf("I found %d existing SKU(s) named like %q. Did you mean one of these?\n%s\nIf not, say 'add a new sku' without a name to start fresh.", len(items), it.Name, formatMatches(items)),
				Action:  "add",
				Matches: items,
			}
		}
	}

	prefill := &domain.SKU{Name: it.Name, Manufacturer: it.Manufacturer}
	reply := "Let's add a new SKU. Please fill in the details."
	if it.Name != "" {
		reply = fmt.Sprintf("Let's add a new SKU for %q. Please fill in the remaining details.", it.Name)
	}
	return ChatResponse{
		Reply:      reply,
		Action:     "add",
		SKUDetails: prefill,
	}
}

func (a *App) handleEdit(ctx context.Context, it intent.Intent) ChatResponse {
	if it.NDC == "" {
		return ChatResponse{Reply: "Which SKU would you like to edit? Please include its code, e.g. 'edit sku 12345-678-90'."}
	}
	matches, err := a.resolver.Resolve(ctx, it.NDC)
	if err != nil {
		slog.Warn("edit resolve failed", "identifier", it.NDC, "err", err)
		return ChatResponse{Reply: failureReply}
	}
	switch len(matches) {
	case 0:
		return ChatResponse{Reply: fmt.Sprintf("I couldn't find a SKU matching %q. Please check the code and try again.", it.NDC)}
	case 1:
		sku := matches[0]
		return ChatResponse{
			Reply:      fmt.Sprintf("Found %s (%s). What would you like to change?", sku.Name, sku.NDC),
			Action:     "edit",
			SKUDetails: &sku,
		}
	default:
		return ChatResponse{
			Reply:   fmt.Sprintf("%q matches several SKUs. Which one did you mean?\n%s", it.NDC, formatMatches(matches)),
			Matches: limitMatches(matches),
		}
	}
}

func (a *App) handleSearch(ctx context.Context, it intent.Intent) ChatResponse {
	filter := catalogclient.ListFilter{PageSize: maxListedMatches}
	if it.SearchTerm != "" {
		filter.Name = it.SearchTerm
	}
	items, total, err := a.catalog.List(ctx, filter)
	if err != nil {
		slog.Warn("search failed", "term", it.SearchTerm, "err", err)
		return ChatResponse{Reply: failureReply}
	}
	if total == 0 {
		if it.SearchTerm == "" {
			return ChatResponse{Reply: "The catalog is empty."}
		}
		return ChatResponse{Reply: fmt.Sprintf("No SKUs match %q.", it.SearchTerm)}
	}
	what := "SKUs"
	if it.SearchTerm != "" {
		what = fmt.Sprintf("SKU(s) matching %q", it.SearchTerm)
	}
	return ChatResponse{
		Reply:   fmt.Sprintf("Found %d %s:\n%s", total, what, formatMatches(items)),
		Action:  "search",
		Matches: items,
		Total:   total,
	}
}

// handleDelete never deletes directly: a successful resolve only yields a
// confirmation-gated action, and the actual deletion happens after separate,
// explicit user confirmation.
func (a *App) handleDelete(ctx context.Context, it intent.Intent) ChatResponse {
	if it.NDC == "" {
		return ChatResponse{Reply: "Which SKU would you like to delete? Please include its code, e.g. 'delete sku 12345-678-90'."}
	}
	matches, err := a.resolver.Resolve(ctx, it.NDC)
	if err != nil {
		slog.Warn("delete resolve failed", "identifier", it.NDC, "err", err)
		return ChatResponse{Reply: failureReply}
	}
	switch len(matches) {
	case 0:
		return ChatResponse{Reply: fmt.Sprintf("I couldn't find a SKU matching %q. Please check the code and try again.", it.NDC)}
	case 1:
		sku := matches[0]
		return ChatResponse{
			Reply:                fmt.Sprintf("You're about to delete %s (%s). Are you sure?", sku.Name, sku.NDC),
			Action:               "delete",
			SKUDetails:           &sku,
			ConfirmationRequired: true,
			ConfirmationType:     "delete",
		}
	default:
		return ChatResponse{
			Reply:   fmt.Sprintf("%q matches several SKUs. Which one did you mean?\n%s", it.NDC, formatMatches(matches)),
			Matches: limitMatches(matches),
		}
	}
}

func formatMatches(matches []domain.SKU) string {
	var b strings.Builder
	for i, sku := range matches {
		if i >= maxListedMatches {
			b.WriteString(fmt.Sprintf("…and %d more", len(matches)-maxListedMatches))
			break
		}
		b.WriteString(fmt.Sprintf("- %s (%s)", sku.Name, sku.NDC))
		if i < len(matches)-1 && i < maxListedMatches-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func limitMatches(matches []domain.SKU) []domain.SKU {
	if len(matches) > maxListedMatches {
		return matches[:maxListedMatches]
	}
	return matches
}
