package vector

import (
	"strings"
	"testing"

	"github.com/veraxis/scout/pkg/config"
)

func TestNewProvider_Chromem(t *testing.T) {
	cfg := config.VectorConfig{}
	cfg.SetDefaults()

	p, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer func() { _ = p.Close() }()

	if _, ok := p.(*ChromemProvider); !ok {
		t.Errorf("NewProvider() returned %T, want *ChromemProvider", p)
	}
	if p.Name() != "chromem" {
		t.Errorf("Name() = %q, want %q", p.Name(), "chromem")
	}
}

func TestNewProvider_Unsupported(t *testing.T) {
	_, err := NewProvider(config.VectorConfig{Provider: "weaviate"})
	if err == nil {
		t.Fatal("NewProvider() with unsupported provider should fail")
	}
	if !strings.Contains(err.Error(), "unsupported vector provider") {
		t.Errorf("error = %q, want mention of unsupported vector provider", err.Error())
	}
}

func TestNewQdrantProvider_Defaults(t *testing.T) {
	// The gRPC connection is lazy, so no server is needed here.
	p, err := NewQdrantProvider(config.VectorConfig{})
	if err != nil {
		t.Fatalf("NewQdrantProvider() error = %v", err)
	}
	defer func() { _ = p.Close() }()

	if p.Name() != "qdrant" {
		t.Errorf("Name() = %q, want %q", p.Name(), "qdrant")
	}
}

func TestNewPineconeProvider_RequiresConfig(t *testing.T) {
	if _, err := NewPineconeProvider(config.VectorConfig{IndexHost: "idx.pinecone.io"}); err == nil {
		t.Error("NewPineconeProvider() without API key should fail")
	}
	if _, err := NewPineconeProvider(config.VectorConfig{APIKey: "key"}); err == nil {
		t.Error("NewPineconeProvider() without index host should fail")
	}
}
