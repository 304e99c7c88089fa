// Copyright 2025 Veraxis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vector abstracts vector database backends behind a single
// Provider interface. The embedded chromem backend needs no external
// services and is the default; qdrant and pinecone connect to remote
// stores. Vectors are always computed externally (see the embedder
// package); providers only store and search them.
package vector

import (
	"context"
	"fmt"

	"github.com/veraxis/scout/pkg/config"
)

// Result is a single similarity search hit.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// Provider is implemented by every vector database backend.
type Provider interface {
	// Upsert adds or replaces a document and its vector. The metadata
	// map travels with the vector and is returned on search; the
	// "content" key, if present, is surfaced as Result.Content.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	// Search returns the topK most similar documents.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// SearchWithFilter combines similarity search with exact-match
	// metadata filtering.
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Delete removes a document by ID.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteByFilter removes all documents matching the filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// CreateCollection creates a collection for vectors of the given
	// dimension. Backends with implicit collections treat this as a
	// no-op.
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error

	// DeleteCollection removes a collection and all its documents.
	DeleteCollection(ctx context.Context, collection string) error

	// Name returns the backend name.
	Name() string

	// Close releases client resources.
	Close() error
}

// NewProvider builds a vector provider from configuration.
func NewProvider(cfg config.VectorConfig) (Provider, error) {
	switch cfg.Provider {
	case config.VectorProviderChromem:
		return NewChromemProvider(cfg)
	case config.VectorProviderQdrant:
		return NewQdrantProvider(cfg)
	case config.VectorProviderPinecone:
		return NewPineconeProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported vector provider: %s", cfg.Provider)
	}
}
