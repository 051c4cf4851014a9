package archive

import (
	"errors"
	"fmt"

	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/internal/core/observability/log"
	"github.com/zeusync/metacore/pkg/bytebuffer"
)

// AssetArchiver persists top-level assets. An asset blob is an object blob
// with the asset header right after the class header:
//
//	ClassName:String Version:u32 UUID:String Name:String Loader:String Body
type AssetArchiver struct {
	objects *ObjectArchiver
	loaders *asset.Loaders
	log     log.Log
}

func NewAssetArchiver(objects *ObjectArchiver, loaders *asset.Loaders) *AssetArchiver {
	if loaders == nil {
		loaders, _ = asset.NewLoaders()
	}
	return &AssetArchiver{objects: objects, loaders: loaders, log: objects.log}
}

func (a *AssetArchiver) Objects() *ObjectArchiver { return a.objects }
func (a *AssetArchiver) Loaders() *asset.Loaders  { return a.loaders }

func (a *AssetArchiver) Serialize(x asset.Asset) ([]byte, error) {
	buf := bytebuffer.New()
	if err := a.SerializeTo(buf, x); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *AssetArchiver) SerializeTo(buf *bytebuffer.ByteBuffer, x asset.Asset) error {
	if meta.IsNil(x) {
		return asset.ErrNotAnAsset
	}
	class, err := a.objects.registry.ClassOf(x)
	if err != nil {
		return err
	}
	writeClassHeader(buf, class)
	WriteUUID(buf, x.AssetID())
	buf.WriteString(x.AssetName())
	buf.WriteString(asset.LoaderName(x))
	return a.objects.writeBody(buf, class, x)
}

func (a *AssetArchiver) Deserialize(data []byte) (asset.Asset, error) {
	return a.DeserializeFrom(bytebuffer.FromBytes(data))
}

// DeserializeFrom decodes the next asset blob of buf into a new asset and
// runs its loader.
func (a *AssetArchiver) DeserializeFrom(buf *bytebuffer.ByteBuffer) (asset.Asset, error) {
	class, err := a.objects.readClassHeader(buf)
	if err != nil {
		return nil, err
	}
	x, ok := asset.As(class.Construct())
	if !ok {
		return nil, fmt.Errorf("%w: class %s", asset.ErrNotAnAsset, class.Name())
	}
	if err = a.decode(buf, class, x); err != nil {
		return nil, err
	}
	return x, nil
}

// Reload decodes the next asset blob of buf into existing, keeping its
// identity for everything that already references it.
func (a *AssetArchiver) Reload(buf *bytebuffer.ByteBuffer, existing asset.Asset) error {
	target, err := a.objects.registry.ClassOf(existing)
	if err != nil {
		return err
	}
	class, err := a.objects.readClassHeader(buf)
	if err != nil {
		return err
	}
	if class != target {
		return fmt.Errorf("%w: blob holds %s, asset is %s", ErrClassMismatch, class.Name(), target.Name())
	}
	return a.decode(buf, class, existing)
}

func (a *AssetArchiver) decode(buf *bytebuffer.ByteBuffer, class *meta.Class, x asset.Asset) error {
	id, err := ReadUUID(buf)
	if err != nil {
		return err
	}
	name, err := buf.ReadString()
	if err != nil {
		return err
	}
	loaderName, err := buf.ReadString()
	if err != nil {
		return err
	}
	if err = a.objects.readBody(buf, class, x); err != nil {
		return err
	}

	x.SetAssetID(id)
	x.SetAssetName(name)
	if loaderName == "" {
		return nil
	}
	loader, ok := a.loaders.Get(loaderName)
	if !ok {
		a.log.Warn("asset loader not registered",
			log.String("asset", name), log.String("loader", loaderName))
		return nil
	}
	x.SetAssetLoader(loader)
	if err = loader.OnLoad(x); err != nil {
		return fmt.Errorf("loader %s on %s: %w", loaderName, name, err)
	}
	return nil
}

// SaveFile writes x to path.
func (a *AssetArchiver) SaveFile(path string, x asset.Asset) error {
	buf := bytebuffer.New()
	if err := a.SerializeTo(buf, x); err != nil {
		return err
	}
	return buf.WriteToFile(path)
}

// LoadFile reads a single asset from path.
func (a *AssetArchiver) LoadFile(path string) (asset.Asset, error) {
	buf := bytebuffer.New()
	if err := buf.ReadFromFile(path); err != nil {
		return nil, err
	}
	return a.DeserializeFrom(buf)
}

// SerializeBulk packs several assets into one blob:
// Count:u32 (Size:u32 AssetBlob)*.
func (a *AssetArchiver) SerializeBulk(buf *bytebuffer.ByteBuffer, assets []asset.Asset) error {
	buf.WriteUint32(uint32(len(assets)))
	scratch := bytebuffer.Acquire()
	defer bytebuffer.Release(scratch)
	for _, x := range assets {
		scratch.Reset()
		if err := a.SerializeTo(scratch, x); err != nil {
			return err
		}
		buf.WriteUint32(uint32(scratch.Len()))
		buf.Append(scratch)
	}
	return nil
}

// DeserializeBulk decodes a blob written by SerializeBulk and buckets the
// assets by class. Entries of unknown classes are skipped.
func (a *AssetArchiver) DeserializeBulk(buf *bytebuffer.ByteBuffer) (map[*meta.Class][]asset.Asset, error) {
	count, err := buf.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int64(count)*4 > int64(buf.Remaining()) {
		return nil, fmt.Errorf("%w: bulk declares %d assets", bytebuffer.ErrCorruptData, count)
	}
	out := make(map[*meta.Class][]asset.Asset)
	for i := uint32(0); i < count; i++ {
		size, err := buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		entry, err := buf.Slice(int(size))
		if err != nil {
			return nil, err
		}
		x, err := a.DeserializeFrom(entry)
		if errors.Is(err, ErrClassNotFound) {
			a.log.Warn("skipping asset of unknown class", log.Uint32("index", i), log.Err(err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("asset %d: %w", i, err)
		}
		class, _ := a.objects.registry.ClassOf(x)
		out[class] = append(out[class], x)
	}
	return out, nil
}

func (a *AssetArchiver) SaveBulkFile(path string, assets []asset.Asset) error {
	buf := bytebuffer.New()
	if err := a.SerializeBulk(buf, assets); err != nil {
		return err
	}
	return buf.WriteToFile(path)
}

func (a *AssetArchiver) LoadBulkFile(path string) (map[*meta.Class][]asset.Asset, error) {
	buf := bytebuffer.New()
	if err := buf.ReadFromFile(path); err != nil {
		return nil, err
	}
	return a.DeserializeBulk(buf)
}
