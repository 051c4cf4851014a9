package asset

import (
	"errors"

	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/meta"
)

var (
	ErrNotFound      = errors.New("asset not found")
	ErrClassMismatch = errors.New("asset has a different class")
	ErrNotAnAsset    = errors.New("object is not an asset")
	ErrLoaderExists  = errors.New("loader already registered")
)

// Asset is a shared object addressed by UUID. Embed Base to implement it.
type Asset interface {
	AssetID() uuid.UUID
	AssetName() string
	AssetLoader() Loader
	SetAssetID(id uuid.UUID)
	SetAssetName(name string)
	SetAssetLoader(l Loader)

	assetBase() *Base
}

// Base carries the archiver-managed header of an asset. It is not part of
// the reflected properties of the embedding class.
type Base struct {
	id     uuid.UUID
	name   string
	loader Loader
}

func (b *Base) AssetID() uuid.UUID      { return b.id }
func (b *Base) AssetName() string       { return b.name }
func (b *Base) AssetLoader() Loader     { return b.loader }
func (b *Base) SetAssetID(id uuid.UUID) { b.id = id }
func (b *Base) SetAssetName(n string)   { b.name = n }
func (b *Base) SetAssetLoader(l Loader) { b.loader = l }
func (b *Base) assetBase() *Base        { return b }

// LoaderName returns the name of the loader of a, or "" when it has none.
func LoaderName(a Asset) string {
	if l := a.AssetLoader(); l != nil {
		return l.Name()
	}
	return ""
}

// As converts obj into an Asset.
func As(obj any) (Asset, bool) {
	if meta.IsNil(obj) {
		return nil, false
	}
	a, ok := obj.(Asset)
	return a, ok
}
