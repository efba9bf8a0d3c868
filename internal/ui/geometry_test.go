package ui

import (
	"net/url"
	"testing"

	"github.com/jeffrigby/reacddit-sub000/internal/viewport"
)

func TestGeometrySampleEmpty(t *testing.T) {
	g := NewGeometry()
	if _, _, ok := g.Sample(); ok {
		t.Error("empty bridge should report nothing rendered")
	}
}

func TestGeometryPublishSample(t *testing.T) {
	g := NewGeometry()
	layout := []viewport.ItemLayout{{ID: "t3_a", Top: 0, Bottom: 3, Height: 3}}
	g.Publish(layout, viewport.Metrics{Height: 40, ScrollY: 12, ContentHeight: 75})

	got, m, ok := g.Sample()
	if !ok {
		t.Fatal("expected a sample after publish")
	}
	if len(got) != 1 || got[0].ID != "t3_a" {
		t.Errorf("layout mangled: %+v", got)
	}
	if m.ScrollY != 12 || m.ContentHeight != 75 {
		t.Errorf("metrics mangled: %+v", m)
	}
	if g.ScrollY() != 12 {
		t.Errorf("ScrollY = %v", g.ScrollY())
	}

	// The sample is a copy; mutating it must not leak back.
	got[0].ID = "mutated"
	again, _, _ := g.Sample()
	if again[0].ID != "t3_a" {
		t.Error("sample should be isolated from callers")
	}
}

func TestGeometryScrollHandoff(t *testing.T) {
	g := NewGeometry()
	if _, ok := g.TakeScroll(); ok {
		t.Error("nothing queued yet")
	}

	g.SetScroll(0, 340)
	y, ok := g.TakeScroll()
	if !ok || y != 340 {
		t.Fatalf("expected queued scroll 340, got %v %v", y, ok)
	}
	if _, ok := g.TakeScroll(); ok {
		t.Error("queued scroll must be consumed once")
	}
}

func TestGeometryContext(t *testing.T) {
	g := NewGeometry()
	if g.Context() != "" {
		t.Errorf("fresh bridge has no context, got %q", g.Context())
	}
	if g.Query() == nil {
		t.Error("Query must never return nil")
	}

	g.SetContext("r/golang/hot", url.Values{"limit": {"50"}})
	if g.Context() != "r/golang/hot" {
		t.Errorf("context = %q", g.Context())
	}
	if g.Query().Get("limit") != "50" {
		t.Errorf("query = %v", g.Query())
	}
}
