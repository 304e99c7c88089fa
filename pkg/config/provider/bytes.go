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

package provider

import "context"

// BytesProvider serves config from an in-memory byte slice. Watching is
// not supported.
type BytesProvider struct {
	data []byte
}

// NewBytesProvider creates a provider over literal config content.
func NewBytesProvider(data []byte) *BytesProvider {
	return &BytesProvider{data: data}
}

// Type returns TypeBytes.
func (p *BytesProvider) Type() Type {
	return TypeBytes
}

// Load returns the literal bytes.
func (p *BytesProvider) Load(ctx context.Context) ([]byte, error) {
	return p.data, nil
}

// Watch is not supported for literal bytes.
func (p *BytesProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	return nil, nil
}

// Close is a no-op.
func (p *BytesProvider) Close() error {
	return nil
}

var _ Provider = (*BytesProvider)(nil)
