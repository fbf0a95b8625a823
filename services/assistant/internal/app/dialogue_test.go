package app

import (
	"context"
	"strings"
	"testing"

	"skucatalog/pkg/domain"
	"skucatalog/services/assistant/internal/contextstore"
)

func newTestApp(t *testing.T, catalog *fakeCatalog) *App {
	t.Helper()
	a, err := New(Config{Catalog: catalog, Contexts: contextstore.New(contextstore.Config{})})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestProcessMessageUnknownGetsHelp(t *testing.T) {
	a := newTestApp(t, newFakeCatalog())

	resp := a.ProcessMessage(context.Background(), "what's the weather like")
	if resp.Intent != "unknown" {
		t.Fatalf("expected unknown intent, got %q", resp.Intent)
	}
	if !strings.Contains(resp.Reply, "add a new SKU") {
		t.Fatalf("expected help reply, got %q", resp.Reply)
	}
}

func TestProcessMessageRecordsBothTurns(t *testing.T) {
	a := newTestApp(t, newFakeCatalog())

	a.ProcessMessage(context.Background(), "list all skus")
	msgs := a.Contexts().Snapshot().Messages
	if len(msgs) != 2 {
		t.Fatalf("expected user and assistant turns, got %d messages", len(msgs))
	}
	if !msgs[0].User || msgs[1].User {
		t.Fatalf("unexpected turn roles: %+v", msgs)
	}
}

func TestProcessMessageAddPrefillsForm(t *testing.T) {
	a := newTestApp(t, newFakeCatalog())

	resp := a.ProcessMessage(context.Background(), "add a new sku for ibuprofen by acme")
	if resp.Intent != "add" || resp.Action != "add" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.SKUDetails == nil || resp.SKUDetails.Name != "ibuprofen" || resp.SKUDetails.Manufacturer != "acme" {
		t.Fatalf("expected prefilled form, got %+v", resp.SKUDetails)
	}
}

func TestProcessMessageAddProbesDuplicates(t *testing.T) {
	catalog := newFakeCatalog(domain.SKU{NDC: "12345-678-90", Name: "Aspirin 500mg"})
	a := newTestApp(t, catalog)

	resp := a.ProcessMessage(context.Background(), "add a new sku for aspirin")
	if len(resp.Matches) != 1 || resp.Matches[0].NDC != "12345-678-90" {
		t.Fatalf("expected the existing record as a candidate, got %+v", resp.Matches)
	}
	if !strings.Contains(resp.Reply, "Did you mean") {
		t.Fatalf("expected a duplicate prompt, got %q", resp.Reply)
	}
	if resp.SKUDetails != nil {
		t.Fatal("no form should be prefilled while a duplicate is suspected")
	}
}

func TestProcessMessageEditExactCode(t *testing.T) {
	catalog := newFakeCatalog(domain.SKU{NDC: "12345-678-90", Name: "Aspirin"})
	a := newTestApp(t, catalog)

	resp := a.ProcessMessage(context.Background(), "edit sku 12345-678-90")
	if resp.Intent != "edit" || resp.Action != "edit" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.SKUDetails == nil || resp.SKUDetails.NDC != "12345-678-90" {
		t.Fatalf("expected the record's details, got %+v", resp.SKUDetails)
	}
}

func TestProcessMessageEditNormalizedCode(t *testing.T) {
	catalog := newFakeCatalog(domain.SKU{NDC: "98765-43210", Name: "Paracetamol"})
	a := newTestApp(t, catalog)

	resp := a.ProcessMessage(context.Background(), "edit sku 98765-432-10")
	if resp.SKUDetails == nil || resp.SKUDetails.NDC != "98765-43210" {
		t.Fatalf("hyphen drift must still resolve, got %+v", resp.SKUDetails)
	}
}

func TestProcessMessageEditAmbiguousCode(t *testing.T) {
	catalog := newFakeCatalog(
		domain.SKU{NDC: "12345-678-90", Name: "Aspirin"},
		domain.SKU{NDC: "12345-678-91", Name: "Aspirin Forte"},
	)
	a := newTestApp(t, catalog)

	resp := a.ProcessMessage(context.Background(), "edit sku 12345-678-9")
	if len(resp.Matches) != 2 {
		t.Fatalf("expected both candidates, got %+v", resp.Matches)
	}
	if resp.Action != "" || resp.SKUDetails != nil {
		t.Fatalf("an ambiguous match must not pick a record: %+v", resp)
	}
	if !strings.Contains(resp.Reply, "several") {
		t.Fatalf("expected a disambiguation prompt, got %q", resp.Reply)
	}
}

func TestProcessMessageEditUnknownCode(t *testing.T) {
	a := newTestApp(t, newFakeCatalog())

	resp := a.ProcessMessage(context.Background(), "edit sku 00000-000-00")
	if !strings.Contains(resp.Reply, "couldn't find") {
		t.Fatalf("expected a not-found reply, got %q", resp.Reply)
	}
	if resp.SKUDetails != nil || len(resp.Matches) != 0 {
		t.Fatalf("nothing should be offered: %+v", resp)
	}
}

func TestProcessMessageDeleteRequiresConfirmation(t *testing.T) {
	catalog := newFakeCatalog(domain.SKU{NDC: "12345-678-90", Name: "Aspirin"})
	a := newTestApp(t, catalog)

	resp := a.ProcessMessage(context.Background(), "delete sku 12345-678-90")
	if resp.Action != "delete" || !resp.ConfirmationRequired || resp.ConfirmationType != "delete" {
		t.Fatalf("delete must be confirmation gated, got %+v", resp)
	}
	if len(catalog.deletes) != 0 {
		t.Fatalf("dialogue must never delete directly, got %+v", catalog.deletes)
	}
}

func TestProcessMessageSearchByTerm(t *testing.T) {
	catalog := newFakeCatalog(
		domain.SKU{NDC: "12345-678-90", Name: "Aspirin"},
		domain.SKU{NDC: "12345-678-91", Name: "Ibuprofen"},
	)
	a := newTestApp(t, catalog)

	resp := a.ProcessMessage(context.Background(), "search for skus named aspirin")
	if resp.Intent != "search" || resp.Total != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].Name != "Aspirin" {
		t.Fatalf("unexpected matches: %+v", resp.Matches)
	}
}

func TestProcessMessageSearchListsAll(t *testing.T) {
	catalog := newFakeCatalog(
		domain.SKU{NDC: "12345-678-90", Name: "Aspirin"},
		domain.SKU{NDC: "12345-678-91", Name: "Ibuprofen"},
		domain.SKU{NDC: "12345-678-92", Name: "Paracetamol"},
	)
	a := newTestApp(t, catalog)

	resp := a.ProcessMessage(context.Background(), "list all skus")
	if resp.Total != 3 || len(resp.Matches) != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestProcessMessageSearchEmptyCatalog(t *testing.T) {
	a := newTestApp(t, newFakeCatalog())

	resp := a.ProcessMessage(context.Background(), "list all skus")
	if resp.Reply != "The catalog is empty." {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}
}

func TestProcessMessageUpstreamFailureIsGeneric(t *testing.T) {
	catalog := newFakeCatalog(domain.SKU{NDC: "12345-678-90", Name: "Aspirin"})
	a := newTestApp(t, catalog)

	catalog.failList = true
	if resp := a.ProcessMessage(context.Background(), "search for skus named aspirin"); resp.Reply != failureReply {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}

	catalog.failList = false
	catalog.failGet = true
	if resp := a.ProcessMessage(context.Background(), "edit sku 12345-678-90"); resp.Reply != failureReply {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}
}
