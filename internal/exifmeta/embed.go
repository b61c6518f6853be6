package exifmeta

import (
	"bytes"
	"errors"
	"fmt"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
)

// ErrUnsupportedKind reports an image format the embedder cannot write.
var ErrUnsupportedKind = errors.New("exif embedding not supported for this format")

const exifIfdPath = "IFD/Exif"

// Embedder writes a capture time into image bytes.
type Embedder interface {
	// Embed sets the capture wall clock ("2006:01:02 15:04:05") and its UTC
	// offset ("+02:00") and returns the rewritten bytes.
	Embed(data []byte, kind Kind, localTime, offset string) ([]byte, error)
}

// ExifEmbedder embeds EXIF tags into JPEG and PNG containers.
type ExifEmbedder struct{}

// NewEmbedder returns the default embedder.
func NewEmbedder() ExifEmbedder {
	return ExifEmbedder{}
}

// Embed implements Embedder.
func (ExifEmbedder) Embed(data []byte, kind Kind, localTime, offset string) ([]byte, error) {
	switch kind.Extension {
	case "jpg":
		return embedJPEG(data, localTime, offset)
	case "png":
		return embedPNG(data, localTime, offset)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind.MIME)
	}
}

func embedJPEG(data []byte, localTime, offset string) ([]byte, error) {
	parsed, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse jpeg: %w", err)
	}
	sl, ok := parsed.(*jpegstructure.SegmentList)
	if !ok {
		return nil, fmt.Errorf("parse jpeg: unexpected media context %T", parsed)
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		// No readable EXIF segment; start from an empty IFD0.
		if rootIb, err = newRootBuilder(); err != nil {
			return nil, err
		}
	}
	if err := setCaptureTime(rootIb, localTime, offset); err != nil {
		return nil, err
	}
	if err := sl.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("set jpeg exif: %w", err)
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return nil, fmt.Errorf("write jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func embedPNG(data []byte, localTime, offset string) ([]byte, error) {
	parsed, err := pngstructure.NewPngMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse png: %w", err)
	}
	cs, ok := parsed.(*pngstructure.ChunkSlice)
	if !ok {
		return nil, fmt.Errorf("parse png: unexpected media context %T", parsed)
	}

	rootIb, err := cs.ConstructExifBuilder()
	if err != nil {
		if rootIb, err = newRootBuilder(); err != nil {
			return nil, err
		}
	}
	if err := setCaptureTime(rootIb, localTime, offset); err != nil {
		return nil, err
	}
	if err := cs.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("set png exif: %w", err)
	}

	var buf bytes.Buffer
	if err := cs.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write png: %w", err)
	}
	return buf.Bytes(), nil
}

func newRootBuilder() (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("build ifd mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
}

func setCaptureTime(rootIb *exif.IfdBuilder, localTime, offset string) error {
	ib, err := exif.GetOrCreateIbFromRootIb(rootIb, exifIfdPath)
	if err != nil {
		return fmt.Errorf("exif ifd: %w", err)
	}
	if err := ib.SetStandardWithName("DateTimeOriginal", localTime); err != nil {
		return fmt.Errorf("set DateTimeOriginal: %w", err)
	}
	if err := ib.SetStandardWithName("OffsetTimeOriginal", offset); err != nil {
		return fmt.Errorf("set OffsetTimeOriginal: %w", err)
	}
	return nil
}
